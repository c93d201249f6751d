package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

// ProgressFunc receives the fraction of the file transferred so far, in
// [0, 1]. It is called from the upload goroutine.
type ProgressFunc func(fraction float64)

// Upload streams one file to the backend as multipart form data, reporting
// transfer progress along the way. The returned response always carries a
// task id; a 2xx response without one fails with ErrMissingTaskID.
func (c *Client) Upload(ctx context.Context, filename string, src io.Reader, size int64, progress ProgressFunc) (*UploadResponse, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	counted := &countingReader{r: src, total: size, progress: progress}

	go func() {
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, counted); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/documents/upload", pr)
	if err != nil {
		return nil, fmt.Errorf("upload: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if tok := c.bearer(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		_ = json.NewDecoder(resp.Body).Decode(&eb)
		return nil, &RequestError{Endpoint: "upload", Status: resp.StatusCode, Message: eb.message()}
	}

	var out UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("upload: decode response: %w", err)
	}
	if out.TaskID == "" {
		return nil, ErrMissingTaskID
	}
	if progress != nil {
		progress(1)
	}
	return &out, nil
}

type countingReader struct {
	r        io.Reader
	total    int64
	done     int64
	progress ProgressFunc
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.done += int64(n)
	if c.progress != nil && c.total > 0 {
		frac := float64(c.done) / float64(c.total)
		if frac > 1 {
			frac = 1
		}
		c.progress(frac)
	}
	return n, err
}
