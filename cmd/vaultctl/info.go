package main

import (
	"encoding/hex"

	"github.com/spf13/cobra"

	"github.com/TheMichaelB/vaultctl/internal/container"
)

var infoCmd = &cobra.Command{
	Use:   "info <file>",
	Short: "Show container header parameters",
	Long: `Info parses only the unencrypted header. No password is needed and
the payload is not read.`,
	Example: `  vaultctl info vault.kdbx
  vaultctl info vault.kdbx --json`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	path := args[0]

	ctx, cancel := commandContext()
	defer cancel()

	h, err := container.NewLoader(cfg.Load, logger).ReadHeader(ctx, path)
	if err != nil {
		return err
	}

	version := h.VersionString()
	headerHash := hex.EncodeToString(h.Hash[:])

	if jsonOutput {
		printJSON(map[string]interface{}{
			"container":        path,
			"version":          version,
			"cipher":           h.CipherName(),
			"cipher_id":        h.CipherID.String(),
			"compression":      h.Compression.String(),
			"transform_rounds": h.TransformRounds,
			"inner_stream":     h.InnerStreamID.String(),
			"header_size":      h.Size,
			"header_sha256":    headerHash,
			"comment":          string(h.Comment),
		})
		return nil
	}

	printField("Container", path)
	printField("Version", version)
	printField("Cipher", h.CipherName())
	printField("Compression", h.Compression)
	printField("Transform rounds", h.TransformRounds)
	printField("Inner stream", h.InnerStreamID)
	printField("Header size", h.Size)
	printField("Header SHA-256", headerHash)
	if len(h.Comment) > 0 {
		printField("Comment", string(h.Comment))
	}
	return nil
}
