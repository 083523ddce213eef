package lkflow

import (
	"runtime"
	"testing"
)

func benchmarkBuilder(b *testing.B, workers int) {
	i1 := newNoise(320, 240, 1)
	i2 := newNoise(320, 240, 2)
	builder := &Builder{WindowSize: DefaultWindowSize, Workers: workers}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := builder.Build(i1, i2); err != nil {
			b.FailNow()
		}
	}
}

func Benchmark_BuilderSequential(b *testing.B) {
	benchmarkBuilder(b, 1)
}

func Benchmark_BuilderParallel(b *testing.B) {
	benchmarkBuilder(b, runtime.NumCPU())
}
