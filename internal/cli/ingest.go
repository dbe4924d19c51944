package cli

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"imagededup/internal/apiclient"
	"imagededup/internal/handlers"
)

func newIngestCmd() *cobra.Command {
	var urls []string

	cmd := &cobra.Command{
		Use:   "ingest [files...]",
		Short: "Add images to the corpus as one batch",
		Long: `Add local image files and/or remote URLs to the corpus as one batch.

Files alone are sent as a multipart upload. When --url is given, files are
base64-encoded and sent together with the URLs in a single JSON request.

Examples:
  dupctl ingest a.png b.jpg
  dupctl ingest --url https://example.com/a.png --url https://example.com/b.png`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && len(urls) == 0 {
				return errors.New("provide at least one file or --url")
			}

			files, err := readFiles(args)
			if err != nil {
				return err
			}

			client := newClient()
			var resp handlers.AddImagesResponse
			if len(urls) == 0 {
				resp, err = client.UploadFiles(cmd.Context(), files)
			} else {
				req := handlers.AddImagesRequest{ImageURLs: urls}
				for _, f := range files {
					req.Base64Images = append(req.Base64Images, base64.StdEncoding.EncodeToString(f.Data))
				}
				resp, err = client.AddImages(cmd.Context(), req)
			}
			if err != nil {
				return fmt.Errorf("ingest failed: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().StringArrayVar(&urls, "url", nil, "image URL for the server to download (repeatable)")
	return cmd
}

func readFiles(paths []string) ([]apiclient.File, error) {
	files := make([]apiclient.File, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		files = append(files, apiclient.File{
			Name:        filepath.Base(p),
			ContentType: http.DetectContentType(data),
			Data:        data,
		})
	}
	return files, nil
}
