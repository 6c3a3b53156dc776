package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

type azureStorage struct {
	client    *azblob.Client
	container string
	baseURL   string
}

// NewAzureStorage creates a blob-backed ImageStore. serviceURL may be empty,
// in which case the public endpoint for accountName is used.
func NewAzureStorage(accountName, accountKey, container, serviceURL string) (ImageStore, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}

	if serviceURL == "" {
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net", accountName)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("azure client: %w", err)
	}

	return &azureStorage{
		client:    client,
		container: container,
		baseURL:   strings.TrimRight(client.URL(), "/"),
	}, nil
}

// EnsureContainer creates the container when it does not exist yet
func (s *azureStorage) EnsureContainer(ctx context.Context) error {
	_, err := s.client.CreateContainer(ctx, s.container, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return fmt.Errorf("create container %s: %w", s.container, err)
	}
	return nil
}

func (s *azureStorage) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	blobName, err := cleanName(name)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", errors.New("refusing to upload an empty blob")
	}

	_, err = s.client.UploadBuffer(ctx, s.container, blobName, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType:  to.Ptr(contentType),
			BlobCacheControl: to.Ptr("public, max-age=31536000, immutable"),
		},
	})
	if err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}

	return fmt.Sprintf("%s/%s/%s", s.baseURL, s.container, blobName), nil
}
