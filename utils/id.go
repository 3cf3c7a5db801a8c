package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/binary"
	"os"
	"sync/atomic"
	"time"
)

// xidEncoding is base32hex in lower case, which sorts like the raw bytes.
var xidEncoding = base32.NewEncoding("0123456789abcdefghijklmnopqrstuv").WithPadding(base32.NoPadding)

var (
	machine = machineID()
	pid     = os.Getpid()
	counter = randUint32()
)

func machineID() [3]byte {
	var id [3]byte
	host, _ := os.Hostname()
	sum := sha256.Sum256([]byte(host))
	copy(id[:], sum[:])
	return id
}

func randUint32() *atomic.Uint32 {
	var b [4]byte
	_, _ = rand.Read(b[:])
	c := &atomic.Uint32{}
	c.Store(binary.BigEndian.Uint32(b[:]) & 0xFFFFFF)
	return c
}

// XID returns a 20 character, roughly time ordered unique id made of the
// time in seconds, a host hash, the process id and a counter.
func XID() string {
	var id [12]byte
	binary.BigEndian.PutUint32(id[0:4], uint32(time.Now().Unix()))
	copy(id[4:7], machine[:])
	binary.BigEndian.PutUint16(id[7:9], uint16(pid))
	i := counter.Add(1)
	id[9], id[10], id[11] = byte(i>>16), byte(i>>8), byte(i)
	return xidEncoding.EncodeToString(id[:])
}
