package bench

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"csvdataset/internal/config"
	"csvdataset/internal/dataset"
	"csvdataset/internal/datasource"
)

// buildVehicles renders n records resembling the vehicle registry export:
// an int id, quoted text with delimiters, a float, a bool and an int label.
func buildVehicles(n int) []byte {
	var sb strings.Builder
	sb.WriteString("pcv,typ,stav,vykon,aktualni,kategorie\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "%d,\"E - Evidenční, osobní\",Nezjištěno,%d.5,True,%d\n", 100000+i, 40+i%100, i%4)
	}
	return []byte(sb.String())
}

// BenchmarkEndToEnd exercises schema resolution plus a full decoding pass
// over an in-memory source, so it measures chunking, splitting, tokenizing
// and typed decoding without disk or network I/O.
// Run with:
//
//	go test -run=^$ -bench ^BenchmarkEndToEnd -cpuprofile cpu.out -memprofile mem.out -count=1
func BenchmarkEndToEnd(b *testing.B) {
	data := buildVehicles(50000)
	cfg := config.CSV{ColumnConfigs: map[string]config.ColumnConfig{
		"kategorie": {IsLabel: true},
	}}

	for _, chunk := range []int{4 * 1024, 64 * 1024} {
		b.Run(fmt.Sprintf("chunk=%d", chunk), func(b *testing.B) {
			cfg := cfg
			cfg.ChunkSize = chunk
			b.SetBytes(int64(len(data)))
			b.ReportAllocs()
			ctx := context.Background()

			for i := 0; i < b.N; i++ {
				ds := dataset.New(datasource.Bytes(data), cfg)
				rows, err := ds.Iterator(ctx)
				if err != nil {
					b.Fatalf("Iterator: %v", err)
				}
				var n int
				for {
					_, err := rows.Next()
					if err == io.EOF {
						break
					}
					if err != nil {
						b.Fatalf("Next at line %d: %v", rows.Line(), err)
					}
					n++
				}
				rows.Close()
				if n != 50000 {
					b.Fatalf("decoded %d rows, want 50000", n)
				}
			}
		})
	}
}
