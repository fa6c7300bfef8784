package history

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

const blobScheme = "azblob"

func isBlobHost(host string) bool {
	return strings.HasSuffix(strings.ToLower(host), ".blob.core.windows.net")
}

// blobClient is the subset of [*azblob.Client] used for history payloads.
type blobClient interface {
	// DownloadStream maps to [azblob.Client.DownloadStream]
	DownloadStream(ctx context.Context, containerName, blobName string, o *azblob.DownloadStreamOptions) (azblob.DownloadStreamResponse, error)

	// UploadBuffer maps to [azblob.Client.UploadBuffer]
	UploadBuffer(ctx context.Context, containerName, blobName string, buffer []byte, o *azblob.UploadBufferOptions) (azblob.UploadBufferResponse, error)
}

// BlobStore reads and writes history payloads in Azure Blob Storage.
// Payloads are addressed either as https://<account>.blob.core.windows.net/<container>/<blob>
// or as azblob://<container>/<blob>.
type BlobStore struct {
	client     blobClient
	serviceURL string
	container  string
}

// NewBlobStore connects to the storage account at serviceURL using the
// default Azure credential chain. container is where WritePayload puts new
// payloads.
func NewBlobStore(serviceURL, container string) (*BlobStore, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("creating azure credential: %w", err)
	}
	return newBlobStoreWithCredential(serviceURL, container, cred)
}

func newBlobStoreWithCredential(serviceURL, container string, cred azcore.TokenCredential) (*BlobStore, error) {
	client, err := azblob.NewClient(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("creating blob client for %s: %w", serviceURL, err)
	}
	return &BlobStore{client: client, serviceURL: client.URL(), container: container}, nil
}

// Fetch downloads the blob a storage URL points at.
func (b *BlobStore) Fetch(ctx context.Context, storageURL string) (io.ReadCloser, error) {
	containerName, blobName, err := splitBlobURL(storageURL)
	if err != nil {
		return nil, &FetchError{URL: storageURL, Err: err}
	}

	resp, err := b.client.DownloadStream(ctx, containerName, blobName, nil)
	if err != nil {
		fe := &FetchError{URL: storageURL, Err: err}
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) {
			fe.StatusCode = respErr.StatusCode
		}
		return nil, fe
	}
	return maybeGunzip(storageURL, blobName, resp.Body)
}

// WritePayload uploads data and returns its https storage URL.
func (b *BlobStore) WritePayload(ctx context.Context, name string, data []byte) (string, error) {
	if _, err := b.client.UploadBuffer(ctx, b.container, name, data, nil); err != nil {
		return "", fmt.Errorf("uploading %s/%s: %w", b.container, name, err)
	}
	return strings.TrimSuffix(b.serviceURL, "/") + "/" + b.container + "/" + escapeBlobName(name), nil
}

func splitBlobURL(storageURL string) (containerName, blobName string, err error) {
	u, err := url.Parse(storageURL)
	if err != nil {
		return "", "", err
	}
	if strings.EqualFold(u.Scheme, blobScheme) {
		containerName = u.Host
		blobName = strings.TrimPrefix(u.Path, "/")
	} else {
		parts, err := azblob.ParseURL(storageURL)
		if err != nil {
			return "", "", err
		}
		containerName, blobName = parts.ContainerName, parts.BlobName
	}
	if containerName == "" || blobName == "" {
		return "", "", fmt.Errorf("storage URL %q does not name a container and blob", storageURL)
	}
	return containerName, blobName, nil
}

func escapeBlobName(name string) string {
	segments := strings.Split(name, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
