package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/inodb/oncofreq/internal/extract"
)

// oncokbCancerGeneListURL is the public OncoKB cancer gene list.
const oncokbCancerGeneListURL = "https://www.oncokb.org/api/v1/utils/cancerGeneList.txt"

// downloadTarget is one reference file fetched by the download command.
type downloadTarget struct {
	name string
	url  string
	key  string
}

func downloadTargets() []downloadTarget {
	return []downloadTarget{
		{name: "civic_evidence.tsv", url: extract.DefaultCIViCURL, key: "sources.civic.path"},
		{name: "cancerGeneList.tsv", url: oncokbCancerGeneListURL, key: "knowledge.cancer_gene_list"},
	}
}

func newDownloadCmd() *cobra.Command {
	var (
		outputDir string
		force     bool
	)

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download CIViC evidence and the OncoKB cancer gene list",
		Long: `Download the reference files used for therapeutic linking into a local
directory so runs do not depend on network access to CIViC and OncoKB.`,
		Example: `  oncofreq download
  oncofreq download --output /data/oncofreq
  oncofreq config set sources.civic.path ~/.oncofreq/civic_evidence.tsv`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputDir == "" {
				outputDir = defaultDataDir()
			}
			if err := os.MkdirAll(outputDir, 0o755); err != nil {
				return fmt.Errorf("cannot create directory %s: %w", outputDir, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Destination: %s\n\n", outputDir)
			for _, t := range downloadTargets() {
				dest := filepath.Join(outputDir, t.name)
				if force {
					os.Remove(dest)
				}
				if err := downloadFile(cmd.Context(), out, t.url, dest); err != nil {
					return fmt.Errorf("downloading %s: %w", t.name, err)
				}
			}

			fmt.Fprintf(out, "\nDownload complete!\nTo use these files, run:\n")
			for _, t := range downloadTargets() {
				fmt.Fprintf(out, "  oncofreq config set %s %s\n", t.key, filepath.Join(outputDir, t.name))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory (default: ~/.oncofreq/)")
	cmd.Flags().BoolVar(&force, "force", false, "Re-download files that already exist")

	return cmd
}

// downloadFile downloads url to destPath through a temporary file, printing
// progress to w. Existing files are skipped.
func downloadFile(ctx context.Context, w io.Writer, url, destPath string) error {
	if info, err := os.Stat(destPath); err == nil {
		fmt.Fprintf(w, "  %s already exists (%s), skipping\n", filepath.Base(destPath), formatSize(info.Size()))
		return nil
	}

	fmt.Fprintf(w, "  Downloading %s...\n", filepath.Base(destPath))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: 10 * time.Minute}
	resp, err := client.Do(req)
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

	pw := &progressWriter{out: w, total: resp.ContentLength, lastPrint: time.Now()}
	_, err = io.Copy(f, io.TeeReader(resp.Body, pw))
	f.Close()
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("download failed: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename file: %w", err)
	}

	fmt.Fprintf(w, "    Done: %s\n", formatSize(pw.downloaded))
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
