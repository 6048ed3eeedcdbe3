package sequencer

import (
	"testing"
)

func BenchmarkSequencerProcess(b *testing.B) {
	code := scale(b)
	buf := make([]int16, 2048*2)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		seq, err := New(&Score{Voices: [][]int32{code, code, code}}, 48000, Options{})
		if err != nil {
			b.Fatalf("new failed: %v", err)
		}
		seq.Process(buf)
	}
}
