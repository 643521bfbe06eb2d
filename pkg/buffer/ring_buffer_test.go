package buffer

import (
	"slices"
	"testing"
)

func TestRingBuffer(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		rb := RingN[byte](4)
		if got := rb.Bytes(); got != nil {
			t.Errorf("got=%v", got)
		}
		if rb.Len() != 0 || rb.Total() != 0 {
			t.Errorf("len=%d total=%d", rb.Len(), rb.Total())
		}
	})

	for _, tt := range []struct {
		size int
		want []byte
	}{
		{1, []byte{3}},
		{2, []byte{2, 3}},
		{3, []byte{1, 2, 3}},
		{4, []byte{1, 2, 3}},
	} {
		rb := RingN[byte](tt.size)
		n, err := rb.Write([]byte{1, 2, 3})
		if n != 3 || err != nil {
			t.Fatalf("size=%d: write n=%d err=%v", tt.size, n, err)
		}
		if rb.Len() != len(tt.want) {
			t.Errorf("size=%d: len=%d", tt.size, rb.Len())
		}
		if got := rb.Bytes(); !slices.Equal(got, tt.want) {
			t.Errorf("size=%d: got=%v, want %v", tt.size, got, tt.want)
		}
		if rb.Total() != 3 {
			t.Errorf("size=%d: total=%d", tt.size, rb.Total())
		}
	}

	t.Run("size=100,7,1", func(t *testing.T) {
		rb := RingN[byte](7)
		for i := range 100 {
			rb.Add(byte(i))
		}
		if rb.Len() != 7 {
			t.Errorf("len=%d", rb.Len())
		}
		if got := rb.Bytes(); !slices.Equal(got, []byte{93, 94, 95, 96, 97, 98, 99}) {
			t.Errorf("got=%v", got)
		}
	})

	t.Run("size=100,7,3", func(t *testing.T) {
		rb := RingN[byte](7)
		for i := range 100 {
			rb.Write([]byte{byte(i), byte(i + 1), byte(i + 2)})
		}
		if got := rb.Bytes(); !slices.Equal(got, []byte{99, 98, 99, 100, 99, 100, 101}) {
			t.Errorf("got=%v", got)
		}
		if rb.Total() != 300 {
			t.Errorf("total=%d", rb.Total())
		}
	})

	t.Run("size=7,write 10", func(t *testing.T) {
		rb := RingN[byte](7)
		rb.Add(0xff)
		rb.Write([]byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9})
		if got := rb.Bytes(); !slices.Equal(got, []byte{3, 4, 5, 6, 7, 8, 9}) {
			t.Errorf("got=%v", got)
		}
		if rb.Total() != 11 {
			t.Errorf("total=%d", rb.Total())
		}
	})

	t.Run("copy", func(t *testing.T) {
		rb := RingN[string](4)
		rb.Add("a")
		rb.Add("b")
		got := rb.Bytes()
		got[0] = "x"
		if rb.Bytes()[0] != "a" {
			t.Error("Bytes aliases the ring")
		}
	})
}
