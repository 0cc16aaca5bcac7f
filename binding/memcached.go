package binding

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"net"
	"time"

	nb "github.com/hhkbp2/nosqlbench"
)

// Memcached binary protocol.
const (
	MemcachedHeaderSize = 24

	memcachedMagicRequest  = 0x80
	memcachedMagicResponse = 0x81

	memcachedOpGet    = 0x00
	memcachedOpSet    = 0x01
	memcachedOpAdd    = 0x02
	memcachedOpDelete = 0x04

	MemcachedStatusOK          = 0x0000
	MemcachedStatusKeyNotFound = 0x0001
	MemcachedStatusKeyExists   = 0x0002

	// flags and expiration of a set or add
	memcachedStoreExtras = 8
)

// MemcachedHeader is the fixed part of every request and response. For a
// request Status holds the vbucket id.
type MemcachedHeader struct {
	Magic        uint8
	Opcode       uint8
	KeyLength    uint16
	ExtrasLength uint8
	DataType     uint8
	Status       uint16
	BodyLength   uint32
	Opaque       uint32
	CAS          uint64
}

func (self *MemcachedHeader) Encode(b []byte) {
	b[0] = self.Magic
	b[1] = self.Opcode
	binary.BigEndian.PutUint16(b[2:], self.KeyLength)
	b[4] = self.ExtrasLength
	b[5] = self.DataType
	binary.BigEndian.PutUint16(b[6:], self.Status)
	binary.BigEndian.PutUint32(b[8:], self.BodyLength)
	binary.BigEndian.PutUint32(b[12:], self.Opaque)
	binary.BigEndian.PutUint64(b[16:], self.CAS)
}

func DecodeMemcachedHeader(b []byte) MemcachedHeader {
	return MemcachedHeader{
		Magic:        b[0],
		Opcode:       b[1],
		KeyLength:    binary.BigEndian.Uint16(b[2:]),
		ExtrasLength: b[4],
		DataType:     b[5],
		Status:       binary.BigEndian.Uint16(b[6:]),
		BodyLength:   binary.BigEndian.Uint32(b[8:]),
		Opaque:       binary.BigEndian.Uint32(b[12:]),
		CAS:          binary.BigEndian.Uint64(b[16:]),
	}
}

type memcachedRequest struct {
	opcode uint8
	opaque uint32
	start  time.Time
}

// MemcachedDB speaks the memcached binary protocol on one connection. It
// can be driven synchronously through Recv or asynchronously by a
// reactor; requests are only encoded, never sent, by the request methods.
type MemcachedDB struct {
	conn     net.Conn
	reader   *bufio.Reader
	value    []byte
	wbuf     []byte
	inflight []memcachedRequest
	opaque   uint32
}

func NewMemcachedDB() *MemcachedDB {
	return &MemcachedDB{}
}

func (self *MemcachedDB) Init(valueSize int) error {
	self.value = nb.FillValue(valueSize)
	return nil
}

func (self *MemcachedDB) Connect(ctx context.Context, opts *nb.Options) error {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", opts.Address())
	if err != nil {
		return nb.NewErrorf("%w: memcached connect failed: %v", nb.ErrConnection, err)
	}
	self.conn = conn
	self.reader = bufio.NewReader(conn)
	return nil
}

func (self *MemcachedDB) Close() error {
	if self.conn == nil {
		return nil
	}
	err := self.conn.Close()
	self.conn = nil
	return err
}

func (self *MemcachedDB) encode(opcode uint8, key nb.Key, extras int, value []byte) {
	self.opaque++
	h := MemcachedHeader{
		Magic:        memcachedMagicRequest,
		Opcode:       opcode,
		KeyLength:    uint16(len(key)),
		ExtrasLength: uint8(extras),
		BodyLength:   uint32(extras + len(key) + len(value)),
		Opaque:       self.opaque,
	}
	off := len(self.wbuf)
	self.wbuf = append(self.wbuf, make([]byte, MemcachedHeaderSize+extras)...)
	h.Encode(self.wbuf[off:])
	// flags and expiration stay zero
	self.wbuf = append(self.wbuf, key...)
	self.wbuf = append(self.wbuf, value...)
	self.inflight = append(self.inflight, memcachedRequest{
		opcode: opcode,
		opaque: self.opaque,
		start:  time.Now(),
	})
}

func (self *MemcachedDB) Insert(key nb.Key) error {
	self.encode(memcachedOpAdd, key, memcachedStoreExtras, self.value)
	return nil
}

func (self *MemcachedDB) Replace(key nb.Key) error {
	self.encode(memcachedOpSet, key, memcachedStoreExtras, self.value)
	return nil
}

// Update is not supported by this binding.
func (self *MemcachedDB) Update(key nb.Key) error {
	return nb.ErrNotImplemented
}

func (self *MemcachedDB) Delete(key nb.Key) error {
	self.encode(memcachedOpDelete, key, 0, nil)
	return nil
}

func (self *MemcachedDB) Select(key nb.Key) error {
	self.encode(memcachedOpGet, key, 0, nil)
	return nil
}

func (self *MemcachedDB) NetConn() net.Conn {
	return self.conn
}

func (self *MemcachedDB) WriteBuffer() []byte {
	buf := self.wbuf
	self.wbuf = nil
	return buf
}

func (self *MemcachedDB) MessageLength(buf []byte) (int, error) {
	if len(buf) < MemcachedHeaderSize {
		return 0, nil
	}
	if buf[0] != memcachedMagicResponse {
		return 0, nb.NewErrorf("%w: memcached magic 0x%02x", nb.ErrBadResponse, buf[0])
	}
	return MemcachedHeaderSize + int(binary.BigEndian.Uint32(buf[8:])), nil
}

func (self *MemcachedDB) Consume(buf []byte) (int, nb.Response, error) {
	length, err := self.MessageLength(buf)
	if err != nil {
		return 0, nb.Response{}, err
	}
	if length == 0 || length > len(buf) {
		return 0, nb.Response{}, nb.NewErrorf("%w: truncated memcached response", nb.ErrBadResponse)
	}
	if len(self.inflight) == 0 {
		return 0, nb.Response{}, nb.NewErrorf("%w: unexpected memcached response", nb.ErrBadResponse)
	}
	h := DecodeMemcachedHeader(buf)
	req := self.inflight[0]
	if h.Opaque != req.opaque || h.Opcode != req.opcode {
		return 0, nb.Response{}, nb.NewErrorf("%w: memcached response %d/0x%02x for request %d/0x%02x",
			nb.ErrBadResponse, h.Opaque, h.Opcode, req.opaque, req.opcode)
	}
	self.inflight = self.inflight[1:]
	resp := nb.Response{
		Latency: time.Since(req.start),
	}
	if h.Status != MemcachedStatusOK {
		if h.Opcode == memcachedOpGet {
			resp.Miss = true
		} else {
			nb.Debugf("memcached server respond: %d", h.Status)
		}
	}
	return length, resp, nil
}

// Recv sends everything encoded so far and reads count responses.
func (self *MemcachedDB) Recv(count int, latency nb.LatencyFunc) (int, error) {
	if len(self.wbuf) > 0 {
		if _, err := self.conn.Write(self.WriteBuffer()); err != nil {
			return 0, connectionError(err)
		}
	}
	missed := 0
	buf := make([]byte, MemcachedHeaderSize, MemcachedHeaderSize+len(self.value)+256)
	for ; count > 0; count-- {
		buf = buf[:MemcachedHeaderSize]
		if _, err := io.ReadFull(self.reader, buf); err != nil {
			return missed, nb.NewErrorf("%w: memcached recv failed: %v", nb.ErrConnection, err)
		}
		length, err := self.MessageLength(buf)
		if err != nil {
			return missed, err
		}
		if length > cap(buf) {
			grown := make([]byte, length)
			copy(grown, buf)
			buf = grown
		}
		buf = buf[:length]
		if _, err := io.ReadFull(self.reader, buf[MemcachedHeaderSize:]); err != nil {
			return missed, nb.NewErrorf("%w: memcached recv failed: %v", nb.ErrConnection, err)
		}
		_, resp, err := self.Consume(buf)
		if err != nil {
			return missed, err
		}
		if latency != nil {
			latency(resp.Latency)
		}
		if resp.Miss {
			missed++
		}
	}
	return missed, nil
}
