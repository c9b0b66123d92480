package benchmark

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/TheMichaelB/vaultctl/internal/config"
	"github.com/TheMichaelB/vaultctl/internal/container"
	"github.com/TheMichaelB/vaultctl/internal/crypto"
	"github.com/TheMichaelB/vaultctl/internal/models"
	"github.com/TheMichaelB/vaultctl/test/testutil"
)

func BenchmarkKeyDerivation(b *testing.B) {
	rounds := []uint64{1000, 60000}

	for _, r := range rounds {
		b.Run(fmt.Sprintf("rounds_%d", r), func(b *testing.B) {
			params := crypto.KeyParams{
				MasterSeed:      make([]byte, models.SeedSize),
				TransformSeed:   make([]byte, models.SeedSize),
				TransformRounds: r,
				IV:              make([]byte, models.AESIVSize),
			}

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				creds := crypto.NewPasswordCredentials([]byte("password123"))
				key, err := crypto.DeriveKey(context.Background(), creds, params)
				if err != nil {
					b.Fatal(err)
				}
				key.Destroy()
				creds.Destroy()
			}
		})
	}
}

func BenchmarkHashedBlockReader(b *testing.B) {
	sizes := []int{
		10240,    // 10KB
		1048576,  // 1MB
		10485760, // 10MB
	}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("%dKB", size/1024), func(b *testing.B) {
			payload := make([]byte, size)
			rand.Read(payload)
			data := testutil.EncodeBlocks(testutil.SplitBlocks(payload, 1<<20))

			b.ResetTimer()
			b.ReportAllocs()
			b.SetBytes(int64(size))

			for i := 0; i < b.N; i++ {
				r := container.NewHashedBlockReader(bytes.NewReader(data), container.BlockReaderOptions{})
				if _, err := io.Copy(io.Discard, r); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkLoad(b *testing.B) {
	entries := []int{10, 1000}

	for _, n := range entries {
		for _, comp := range []models.Compression{models.CompressionNone, models.CompressionGZip} {
			b.Run(fmt.Sprintf("%d_entries_%s", n, comp), func(b *testing.B) {
				builder := testutil.NewContainerBuilder()
				builder.Compression = comp
				builder.BlockSize = 1 << 20
				data := builder.MustBuild(syntheticDocument(n))

				loader := container.NewLoader(config.DefaultConfig().Load, nil)

				b.ResetTimer()
				b.ReportAllocs()
				b.SetBytes(int64(len(data)))

				for i := 0; i < b.N; i++ {
					creds := crypto.NewPasswordCredentials([]byte(testutil.TestPassword))
					if _, err := loader.LoadReader(context.Background(), bytes.NewReader(data), creds); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}

func syntheticDocument(entries int) string {
	var sb strings.Builder
	sb.WriteString("<KeePassFile><Root><Group><Name>Bench</Name>")
	for i := 0; i < entries; i++ {
		fmt.Fprintf(&sb, `<Entry><String><Key>Title</Key><Value>entry %d</Value></String>`, i)
		fmt.Fprintf(&sb, `<String><Key>Password</Key><Value Protected="True">secret-%d</Value></String></Entry>`, i)
	}
	sb.WriteString("</Group></Root></KeePassFile>")
	return sb.String()
}
