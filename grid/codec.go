package grid

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"git.fiblab.net/sim/accessibility/webmercator"
	"github.com/klauspost/compress/gzip"
)

// 二进制格式（v1）：
// 头部为5个小端int32：zoom, west, north, width, height
// 之后为width*height个小端int32，按行优先（x变化最快）存储相邻值之差
// 差分链贯穿整个数据区，只在开头清零；四舍五入误差沿行扩散，每行开头清零
// 写出时密度四舍五入为整数，小数部分会丢失

const headerInts = 5

// MaxDensity 可写出的最大单元格机会数
const MaxDensity = math.MaxInt32 - 0.5

var gzipMagic = []byte{0x1f, 0x8b}

// Write 以v1二进制格式写出网格
// 存在负值、非有限值或超出int32范围的值时返回ErrFormat，不写出任何内容
func (g *Grid) Write(w io.Writer) error {
	t := g.mu.RLock()
	defer g.mu.RUnlock(t)
	for i, v := range g.density {
		if !(v >= 0) || math.IsInf(v, 1) {
			return fmt.Errorf("%w: opportunity density %v at index %d must be finite and non-negative", ErrFormat, v, i)
		}
		// 误差扩散项在[-0.5, 0.5)内，四舍五入后仍不超过MaxInt32
		if v > MaxDensity {
			return fmt.Errorf("%w: opportunity density %v at index %d exceeds %v", ErrFormat, v, i, MaxDensity)
		}
	}

	bw := bufio.NewWriter(w)
	e := g.Extents
	header := [headerInts]int32{int32(e.Zoom), int32(e.West), int32(e.North), int32(e.Width), int32(e.Height)}
	if err := binary.Write(bw, binary.LittleEndian, header[:]); err != nil {
		return err
	}
	buf := make([]byte, 4*e.Width)
	var prev int32
	for y := 0; y < e.Height; y++ {
		// 每行重置误差，避免误差扩散到较远的位置
		diffusion := 0.0
		for x := 0; x < e.Width; x++ {
			v := g.density[g.index(x, y)] + diffusion
			rounded := int32(math.Floor(v + 0.5))
			diffusion = v - float64(rounded)
			binary.LittleEndian.PutUint32(buf[4*x:], uint32(rounded-prev))
			prev = rounded
		}
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteCompressed 写出gzip压缩的v1格式，Read可直接读取
func (g *Grid) WriteCompressed(w io.Writer) error {
	zw := gzip.NewWriter(w)
	if err := g.Write(zw); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// Read 读取v1格式网格，自动识别gzip压缩
func Read(r io.Reader) (*Grid, error) {
	br := bufio.NewReader(r)
	if magic, err := br.Peek(len(gzipMagic)); err == nil && magic[0] == gzipMagic[0] && magic[1] == gzipMagic[1] {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFormat, err)
		}
		defer zr.Close()
		return read(bufio.NewReader(zr))
	}
	return read(br)
}

func read(r io.Reader) (*Grid, error) {
	var header [headerInts]int32
	if err := binary.Read(r, binary.LittleEndian, header[:]); err != nil {
		return nil, fmt.Errorf("%w: truncated header: %w", ErrFormat, unexpectedEOF(err))
	}
	zoom, west, north, width, height := int(header[0]), int(header[1]), int(header[2]), int(header[3]), int(header[4])
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: non-positive size %dx%d", ErrFormat, width, height)
	}
	extents, err := webmercator.NewExtents(west, north, width, height, zoom)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	g, err := New(extents)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}

	buf := make([]byte, 4*width)
	var value int32
	for y := 0; y < height; y++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("%w: truncated body at row %d: %w", ErrFormat, y, unexpectedEOF(err))
		}
		for x := 0; x < width; x++ {
			value += int32(binary.LittleEndian.Uint32(buf[4*x:]))
			g.density[g.index(x, y)] = float64(value)
		}
	}
	return g, nil
}

func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
