package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/TheMichaelB/vaultctl/internal/container"
	"github.com/TheMichaelB/vaultctl/internal/crypto"
	"github.com/TheMichaelB/vaultctl/internal/document"
	"github.com/TheMichaelB/vaultctl/internal/storage"
)

var showCmd = &cobra.Command{
	Use:   "show <file>",
	Short: "Decrypt a container and print its document",
	Long: `Show loads the container, checks the credentials and every hashed
block, decodes protected values and prints the document as XML.

Protected values are masked unless --reveal is given.`,
	Example: `  vaultctl show vault.kdbx
  vaultctl show vault.kdbx --reveal --out vault.xml
  VAULTCTL_PASSWORD=secret vaultctl show vault.kdbx --json`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

var (
	showPassword string
	showReveal   bool
	showOut      string
	showIndent   string
)

func init() {
	rootCmd.AddCommand(showCmd)

	showCmd.Flags().StringVarP(&showPassword, "password", "p", "",
		"Container password (will prompt if not provided)")
	showCmd.Flags().BoolVar(&showReveal, "reveal", false,
		"Print protected values in plaintext")
	showCmd.Flags().StringVarP(&showOut, "out", "o", "",
		"Write the document to a file instead of stdout")
	showCmd.Flags().StringVar(&showIndent, "indent", "",
		"Re-indent the document with this string")
}

func runShow(cmd *cobra.Command, args []string) error {
	path := args[0]

	creds, err := newPasswordSource(showPassword, true).credentials(path)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext()
	defer cancel()

	doc, err := container.NewLoader(cfg.Load, logger).Load(ctx, path, creds)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	defer func() { crypto.ClearBytes(buf.Bytes()) }()

	if err := document.Encode(&buf, doc, document.EncodeOptions{Indent: showIndent, Redact: !showReveal}); err != nil {
		return err
	}
	buf.WriteByte('\n')

	protected := 0
	_ = doc.Walk(func(e *document.Element) error {
		if e.Sensitive {
			protected++
		}
		return nil
	})

	if showOut != "" {
		if err := storage.WriteAtomic(showOut, bytes.NewReader(buf.Bytes()), 0600, cfg.Load.MaxFileSize); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	}

	if jsonOutput {
		result := map[string]interface{}{
			"success":   true,
			"container": path,
			"protected": protected,
			"revealed":  showReveal,
		}
		if showOut != "" {
			result["output"] = showOut
		} else {
			result["document"] = buf.String()
		}
		printJSON(result)
		return nil
	}

	if showOut != "" {
		printSuccess("Wrote %s (%d protected values)", showOut, protected)
		return nil
	}

	if _, err := os.Stdout.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	if !showReveal && protected > 0 {
		printInfo("%d protected values masked; use --reveal to show them", protected)
	}
	return nil
}
