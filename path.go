package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"git.fiblab.net/sim/accessibility/grid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var errNoMongoURI = errors.New("mongo uri is required for database locators")

// Locator 网格位置：本地文件，或 {db}.{col}/{key} 表示MongoDB集合中的一个文档
type Locator struct {
	File string
	DB   string
	Coll string
	Key  string
}

func NewLocator(fileOrDoc string) (*Locator, error) {
	fileOrDoc = strings.TrimSpace(fileOrDoc)
	if fileOrDoc == "" {
		return nil, fmt.Errorf("empty grid locator")
	}
	// 检查是否作为文件存在
	if _, err := os.Stat(fileOrDoc); err == nil {
		return &Locator{File: fileOrDoc}, nil
	}
	dbDotColl, key, found := strings.Cut(fileOrDoc, "/")
	splitted := strings.Split(dbDotColl, ".")
	if !found || len(splitted) != 2 || splitted[0] == "" || splitted[1] == "" {
		// 尚不存在的文件，例如输出位置
		return &Locator{File: fileOrDoc}, nil
	}
	if key == "" || strings.Contains(key, "/") {
		return nil, fmt.Errorf("document key is invalid: %s", fileOrDoc)
	}
	return &Locator{
		DB:   splitted[0],
		Coll: splitted[1],
		Key:  key,
	}, nil
}

func (l *Locator) String() string {
	if l.File != "" {
		return l.File
	}
	return l.DB + "." + l.Coll + "/" + l.Key
}

// locatorSource 以定位符为key的网格数据源，按需连接MongoDB
type locatorSource struct {
	mongoURI string

	mu     sync.Mutex
	client *mongo.Client
}

func (s *locatorSource) connect(ctx context.Context) (*mongo.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, nil
	}
	if s.mongoURI == "" {
		return nil, errNoMongoURI
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(s.mongoURI))
	if err != nil {
		return nil, err
	}
	s.client = client
	return client, nil
}

func (s *locatorSource) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	l, err := NewLocator(key)
	if err != nil {
		return nil, err
	}
	if l.File != "" {
		return grid.FileSource{}.Open(ctx, l.File)
	}
	client, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	return grid.NewMongoSource(client, l.DB, l.Coll).Open(ctx, l.Key)
}

func (s *locatorSource) Save(ctx context.Context, key string, data []byte) error {
	l, err := NewLocator(key)
	if err != nil {
		return err
	}
	if l.File != "" {
		return grid.FileSource{}.Save(ctx, l.File, data)
	}
	client, err := s.connect(ctx)
	if err != nil {
		return err
	}
	return grid.NewMongoSource(client, l.DB, l.Coll).Save(ctx, l.Key, data)
}

func (s *locatorSource) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		if err := s.client.Disconnect(context.Background()); err != nil {
			log.Warnf("failed to disconnect from mongo: %v", err)
		}
		s.client = nil
	}
}
