package tasks

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/andrescamacho/taskstream-go/internal/adapters/queue"
	"github.com/andrescamacho/taskstream-go/internal/domain/task"
	"github.com/andrescamacho/taskstream-go/internal/worker"
)

const (
	minLinesPerChunk   = 50
	maxLinesPerChunk   = 300
	snippetRadius      = 30
	maxSnippetsPerHit  = 2000
	defaultDownloadDir = "/data/books"
)

// DocumentAnalysis returns the task function that scans a document for
// keywords, streaming one snippet chunk per hit and progress keyed to bytes
// read. Documents referenced by URL are downloaded into downloadDir on first
// use.
func DocumentAnalysis(downloadDir string, pacing time.Duration) worker.TaskFunc {
	if downloadDir == "" {
		downloadDir = defaultDownloadDir
	}
	return func(ctx context.Context, req queue.ExecutionRequest, reporter *worker.TaskReporter) error {
		payload, ok := req.Payload.(task.DocumentAnalysisPayload)
		if !ok {
			return fmt.Errorf("unexpected payload type %T for document analysis task", req.Payload)
		}

		path, err := resolveDocumentPath(downloadDir, payload.DocumentPath, payload.DocumentURL)
		if err != nil {
			return err
		}
		if len(payload.Keywords) == 0 {
			return fmt.Errorf("keywords are required")
		}
		if err := ensureDocument(ctx, path, payload.DocumentURL); err != nil {
			return fmt.Errorf("failed to download document: %w", err)
		}

		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("document not found: %s", path)
		}
		totalBytes := int(info.Size())

		pattern, err := keywordPattern(payload.Keywords)
		if err != nil {
			return err
		}

		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()

		started := "started"
		if err := reporter.ReportStatus(ctx, runningStatus(0, totalBytes, 0, &started)); err != nil {
			return err
		}

		chunks, err := reporter.ResultChunks(1)
		if err != nil {
			return err
		}

		reader := bufio.NewReader(file)
		totalSnippets := 0
		chunkIndex := 0
		lineNumber := 1
		bytesRead := 0

		for {
			linesToRead := minLinesPerChunk + rand.Intn(maxLinesPerChunk-minLinesPerChunk+1)
			chunkStart := bytesRead
			lines, err := readLines(reader, linesToRead)
			if err != nil && err != io.EOF {
				return err
			}
			if len(lines) == 0 {
				break
			}

			chunkText := strings.Join(lines, "")
			lineOffsets := accumulateOffsets(lines)
			bytesRead += len(chunkText)

			emitted := 0
			for _, loc := range pattern.FindAllStringIndex(chunkText, -1) {
				if emitted >= maxSnippetsPerHit {
					break
				}
				snippet := snippetAround(chunkText, loc[0], loc[1])
				snippetLine := lineNumber + lineAt(lineOffsets, loc[0])

				if err := chunks.Emit(ctx, map[string]interface{}{
					"type":    "snippet_found",
					"keyword": chunkText[loc[0]:loc[1]],
					"snippet": snippet,
					"location": map[string]interface{}{
						"chunk_index": chunkIndex,
						"line":        snippetLine,
					},
					"file": path,
				}); err != nil {
					return err
				}
				emitted++
				totalSnippets++

				if err := pause(ctx, pacing); err != nil {
					return err
				}
				progressed := chunkStart + loc[0]
				if progressed > totalBytes {
					progressed = totalBytes
				}
				if err := reporter.ReportStatus(ctx, runningStatus(progressed, totalBytes, totalSnippets, nil)); err != nil {
					return err
				}
			}

			if emitted == 0 {
				// No hits in this chunk; still advance progress so clients
				// never see a stalled scan.
				if err := reporter.ReportStatus(ctx, runningStatus(bytesRead, totalBytes, totalSnippets, nil)); err != nil {
					return err
				}
			}

			chunkIndex++
			lineNumber += len(lines)
		}

		if err := chunks.Close(ctx); err != nil {
			return err
		}

		completed := "completed"
		one := 1.0
		if err := reporter.ReportStatus(ctx, task.TaskStatus{
			State: task.StateCompleted,
			Progress: task.TaskProgress{
				Current:    intPtr(totalBytes),
				Total:      intPtr(totalBytes),
				Percentage: &one,
			},
			Message: &completed,
			Metrics: map[string]interface{}{
				"snippets_emitted": totalSnippets,
			},
		}); err != nil {
			return err
		}

		return reporter.ReportResult(ctx, map[string]interface{}{
			"task_id": req.TaskID,
			"data": map[string]interface{}{
				"chunks_scanned":   chunkIndex,
				"snippets_emitted": totalSnippets,
			},
		})
	}
}

func runningStatus(bytesRead, totalBytes, snippets int, message *string) task.TaskStatus {
	pct := 1.0
	if totalBytes > 0 {
		pct = float64(bytesRead) / float64(totalBytes)
	}
	return task.TaskStatus{
		State: task.StateRunning,
		Progress: task.TaskProgress{
			Current:    intPtr(bytesRead),
			Total:      intPtr(totalBytes),
			Percentage: &pct,
		},
		Message: message,
		Metrics: map[string]interface{}{
			"snippets_emitted": snippets,
		},
	}
}

// resolveDocumentPath prefers a URL-derived path under the download dir and
// falls back to the explicit local path.
func resolveDocumentPath(downloadDir, documentPath, documentURL string) (string, error) {
	if documentURL != "" {
		parsed, err := url.Parse(documentURL)
		if err != nil {
			return "", fmt.Errorf("invalid document url: %w", err)
		}
		filename := filepath.Base(parsed.Path)
		if filename == "" || filename == "." || filename == "/" {
			filename = "document.txt"
		}
		return filepath.Join(downloadDir, filename), nil
	}
	if documentPath == "" {
		return "", fmt.Errorf("document_path or document_url is required")
	}
	return documentPath, nil
}

// ensureDocument downloads the document when a URL is given and the local
// copy is missing.
func ensureDocument(ctx context.Context, path, documentURL string) error {
	if documentURL == "" {
		return nil
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, documentURL, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, documentURL)
	}

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, resp.Body)
	return err
}

func keywordPattern(keywords []string) (*regexp.Regexp, error) {
	quoted := make([]string, len(keywords))
	for i, kw := range keywords {
		quoted[i] = regexp.QuoteMeta(kw)
	}
	return regexp.Compile("(?i)" + strings.Join(quoted, "|"))
}

func readLines(reader *bufio.Reader, n int) ([]string, error) {
	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		line, err := reader.ReadString('\n')
		if line != "" {
			lines = append(lines, line)
		}
		if err != nil {
			return lines, err
		}
	}
	return lines, nil
}

func accumulateOffsets(lines []string) []int {
	offsets := make([]int, 0, len(lines)+1)
	offsets = append(offsets, 0)
	total := 0
	for _, line := range lines {
		total += len(line)
		offsets = append(offsets, total)
	}
	return offsets
}

// lineAt returns the zero-based line index within the chunk containing the
// byte position.
func lineAt(offsets []int, pos int) int {
	idx := sort.SearchInts(offsets, pos+1) - 1
	if idx < 0 {
		idx = 0
	}
	return idx
}

func snippetAround(text string, start, end int) string {
	from := start - snippetRadius
	if from < 0 {
		from = 0
	}
	to := end + snippetRadius
	if to > len(text) {
		to = len(text)
	}
	return text[from:to]
}
