package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNumber(t *testing.T) {
	tests := map[int64]string{
		0:        "0",
		999:      "999",
		1000:     "1,000",
		1234567:  "1,234,567",
		-1234567: "-1,234,567",
		-12:      "-12",
	}
	for in, want := range tests {
		assert.Equal(t, want, Number(in), "%d", in)
	}
}

func TestDuration(t *testing.T) {
	assert.Equal(t, "0s", Duration(500*time.Millisecond))
	assert.Equal(t, "5.2s", Duration(5200*time.Millisecond))
	assert.Equal(t, "3m5.0s", Duration(3*time.Minute+5*time.Second))
	assert.Equal(t, "2h15m", Duration(2*time.Hour+15*time.Minute))
}

func TestRate(t *testing.T) {
	assert.Equal(t, "123.45", Rate(123.45))
	assert.Equal(t, "12.34K", Rate(12340))
	assert.Equal(t, "1.50M", Rate(1500000))
}

func TestBytes(t *testing.T) {
	assert.Equal(t, "512 B", Bytes(512))
	assert.Equal(t, "1.0 KiB", Bytes(1024))
	assert.Equal(t, "1.5 MiB", Bytes(1536*1024))
	assert.Equal(t, "2.0 GiB", Bytes(2<<30))
}

func TestTruncateLeft(t *testing.T) {
	assert.Equal(t, "short", TruncateLeft("short", 10))
	assert.Equal(t, "..ord.tex", TruncateLeft(`Items\Sword.tex`, 9))
	assert.Equal(t, "ex", TruncateLeft("abc.tex", 2))
}

func TestProgress_Disabled(t *testing.T) {
	p := NewProgress(10, false)
	p.Update(5, "x")
	p.Callback()(6, 10, "y")
	p.Finish()
}

func TestIndexFold(t *testing.T) {
	m, ok := IndexFold([]byte("tagName=X4Tag\r\nother"), "x4tag")
	assert.True(t, ok)
	assert.Equal(t, Match{Offset: 8}, m)

	wide := []byte{0xFF, 0xFE, 'a', 0, 'X', 0, '4', 0, 't', 0, 'A', 0, 'g', 0}
	m, ok = IndexFold(wide, "x4tag")
	assert.True(t, ok)
	assert.Equal(t, Match{Offset: 4, UTF16: true}, m)

	_, ok = IndexFold([]byte("nothing here"), "x4tag")
	assert.False(t, ok)

	_, ok = IndexFold([]byte{0xC3, 0x28, 'X'}, "x")
	assert.True(t, ok, "invalid UTF-8 does not shift offsets")
}

func TestLineAt(t *testing.T) {
	data := []byte("first\r\nsecond x4tag line\r\nthird")
	assert.Equal(t, "second x4tag line", LineAt(data, 14))
	assert.Equal(t, "third", LineAt(data, len(data)-1))
	assert.Equal(t, "first", LineAt(data, 0))
}
