package grid

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Source 网格二进制数据来源
type Source interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// Sink 支持写回的数据来源
type Sink interface {
	Save(ctx context.Context, key string, data []byte) error
}

// FileSource 本地目录，key为相对路径，不能越出Dir
// Dir为空时key本身就是文件路径
type FileSource struct {
	Dir string
}

func (s FileSource) path(key string) (string, error) {
	path := filepath.Join(s.Dir, filepath.FromSlash(key))
	if s.Dir == "" {
		return path, nil
	}
	rel, err := filepath.Rel(s.Dir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q escapes %s", ErrInvalidKey, key, s.Dir)
	}
	return path, nil
}

func (s FileSource) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return f, err
}

// Save 先写临时文件再改名，读者不会看到写了一半的文件
func (s FileSource) Save(ctx context.Context, key string, data []byte) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// MongoSource 网格存放在MongoDB集合中，文档格式为 {_id: key, data: <binary>}
type MongoSource struct {
	Collection *mongo.Collection
}

type gridDocument struct {
	Key  string `bson:"_id"`
	Data []byte `bson:"data"`
}

func NewMongoSource(client *mongo.Client, db, coll string) MongoSource {
	return MongoSource{Collection: client.Database(db).Collection(coll)}
}

func (s MongoSource) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	var doc gridDocument
	err := s.Collection.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s in %s", ErrNotFound, key, s.Collection.Name())
	}
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(doc.Data)), nil
}

func (s MongoSource) Save(ctx context.Context, key string, data []byte) error {
	_, err := s.Collection.ReplaceOne(ctx,
		bson.M{"_id": key},
		gridDocument{Key: key, Data: data},
		options.Replace().SetUpsert(true),
	)
	return err
}
