package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// GENCODE FTP URLs
const (
	gencodeBaseURL = "https://ftp.ebi.ac.uk/pub/databases/gencode/Gencode_human/release_46"
	gencodeVersion = "v46"
)

// getGENCODEURL returns the GTF URL for the given assembly.
func getGENCODEURL(assembly string) string {
	if strings.ToUpper(assembly) == "GRCH37" {
		return fmt.Sprintf("%s/GRCh37_mapping/gencode.%slift37.annotation.gtf.gz", gencodeBaseURL, gencodeVersion)
	}
	// Default to GRCh38
	return fmt.Sprintf("%s/gencode.%s.annotation.gtf.gz", gencodeBaseURL, gencodeVersion)
}

func newDownloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download a GENCODE GTF annotation",
		Long: `Download the GENCODE comprehensive gene annotation for an assembly.

After downloading, 'gtftrim truncate' without an input file uses it.`,
		Example: `  # Download GRCh38 annotations (default)
  gtftrim download

  # Download GRCh37 annotations
  gtftrim download --assembly GRCh37

  # Download to a custom directory
  gtftrim download --output /data/gencode`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(cmd); err != nil {
				return err
			}
			return runDownload(viper.GetString("assembly"), viper.GetString("output"), cmd.OutOrStdout())
		},
	}

	cmd.Flags().String("assembly", "GRCh38", "Genome assembly: GRCh37 or GRCh38")
	cmd.Flags().StringP("output", "o", "", "Output directory (default: ~/.gtftrim/)")

	return cmd
}

func runDownload(assembly, outputDir string, out io.Writer) error {
	if outputDir == "" {
		outputDir = defaultDataDir()
		if outputDir == "" {
			return fmt.Errorf("cannot determine home directory")
		}
	}

	// Create assembly-specific subdirectory
	destDir := filepath.Join(outputDir, strings.ToLower(assembly))
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("cannot create directory %s: %w", destDir, err)
	}

	gtfURL := getGENCODEURL(assembly)

	fmt.Fprintf(out, "Downloading GENCODE %s annotation for %s...\n", gencodeVersion, assembly)
	fmt.Fprintf(out, "Destination: %s\n\n", destDir)

	gtfFile := filepath.Join(destDir, filepath.Base(gtfURL))
	if err := downloadFile(gtfURL, gtfFile, out); err != nil {
		return fmt.Errorf("downloading GTF: %w", err)
	}

	fmt.Fprintf(out, "\nDownload complete!\n")
	fmt.Fprintf(out, "To trim transcripts, run:\n")
	fmt.Fprintf(out, "  gtftrim truncate --assembly %s --five-prime 45\n", assembly)
	return nil
}

// downloadFile downloads a file from URL to the destination path with progress.
func downloadFile(url, destPath string, out io.Writer) error {
	// Check if file already exists
	if info, err := os.Stat(destPath); err == nil {
		fmt.Fprintf(out, "  %s already exists (%s), skipping\n", filepath.Base(destPath), formatSize(info.Size()))
		return nil
	}

	fmt.Fprintf(out, "  Downloading %s...\n", filepath.Base(destPath))
	logger.Debug("downloading", zap.String("url", url))

	client := &http.Client{
		Timeout: 30 * time.Minute,
	}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP error: %s", resp.Status)
	}

	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	pw := &progressWriter{
		out:       out,
		total:     resp.ContentLength,
		lastPrint: time.Now(),
	}

	_, err = io.Copy(f, io.TeeReader(resp.Body, pw))
	f.Close()

	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("download failed: %w", err)
	}

	// Rename temp file to final destination
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename file: %w", err)
	}

	fmt.Fprintf(out, "\n    Done: %s\n", formatSize(pw.downloaded))
	return nil
}

// progressWriter tracks download progress.
type progressWriter struct {
	out        io.Writer
	total      int64
	downloaded int64
	lastPrint  time.Time
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n := len(p)
	pw.downloaded += int64(n)

	// Print progress every second
	if time.Since(pw.lastPrint) > time.Second {
		if pw.total > 0 {
			pct := float64(pw.downloaded) / float64(pw.total) * 100
			fmt.Fprintf(pw.out, "\r    Progress: %s / %s (%.1f%%)  ",
				formatSize(pw.downloaded), formatSize(pw.total), pct)
		} else {
			fmt.Fprintf(pw.out, "\r    Progress: %s  ", formatSize(pw.downloaded))
		}
		pw.lastPrint = time.Now()
	}

	return n, nil
}

// formatSize formats bytes as human-readable size.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FindGENCODEGTF looks for a downloaded GENCODE GTF for the assembly in the
// default location.
func FindGENCODEGTF(assembly string) (string, bool) {
	dir := defaultDataDir()
	if dir == "" {
		return "", false
	}
	dir = filepath.Join(dir, strings.ToLower(assembly))

	pattern := "gencode.v*.annotation.gtf.gz"
	if strings.ToLower(assembly) == "grch37" {
		pattern = "gencode.v*lift37.annotation.gtf.gz"
	}

	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil || len(matches) == 0 {
		return "", false
	}
	return matches[0], true
}
