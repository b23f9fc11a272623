package reports

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// getGoogleClient prefers ADC; GCS_CREDENTIALS_JSON supplies explicit credentials locally.
func getGoogleClient(ctx context.Context) (*storage.Client, error) {
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	}
	return storage.NewClient(ctx)
}

func UploadBytesToGCS(ctx context.Context, bucketName, objectName string, data []byte, contentType string) error {
	if bucketName == "" {
		return errors.New("export bucket is required")
	}
	client, err := getGoogleClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	wc := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	wc.ContentType = contentType

	if _, err := wc.Write(data); err != nil {
		return fmt.Errorf("failed to upload bytes to Google Cloud Storage: %v", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %v", err)
	}
	return nil
}

// ExportToGCS exports franchiseId and uploads the workbook; it returns the gs:// URI.
func ExportToGCS(ctx context.Context, r Reader, bucketName, objectName, franchiseId string) (string, error) {
	data, err := ExportFranchise(ctx, r, franchiseId)
	if err != nil {
		return "", err
	}
	if err := UploadBytesToGCS(ctx, bucketName, objectName, data, XlsxContentType); err != nil {
		return "", err
	}
	return fmt.Sprintf("gs://%s/%s", bucketName, objectName), nil
}
