package contentstore

import (
	"alcyxob/coursevault/internal/config"
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	shell "github.com/ipfs/go-ipfs-api"
)

// Default per-call timeout when none is configured.
const defaultStoreTimeout = 30 * time.Second

// ipfsStore implements the ContentStore interface against the HTTP RPC API
// of an IPFS node (a local daemon or a hosted gateway authenticated with a
// project id/secret pair).
type ipfsStore struct {
	sh         *shell.Shell
	pinOnWrite bool
}

// basicAuthTransport injects the project id/secret as HTTP Basic auth on
// every request to the node.
type basicAuthTransport struct {
	projectID     string
	projectSecret string
	base          http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.projectID, t.projectSecret)
	return t.base.RoundTrip(req)
}

// NewIPFSStore creates a ContentStore backed by an IPFS node.
// An unreachable node is logged loudly but does not fail construction:
// the rest of the application must still be able to start, and the retry
// sweep will pick up any backups that fail in the meantime.
func NewIPFSStore(cfg config.IPFSConfig) ContentStore {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}

	httpClient := &http.Client{Timeout: timeout}
	if cfg.ProjectID != "" {
		httpClient.Transport = &basicAuthTransport{
			projectID:     cfg.ProjectID,
			projectSecret: cfg.ProjectSecret,
			base:          http.DefaultTransport,
		}
	}

	sh := shell.NewShellWithClient(cfg.APIURL, httpClient)
	sh.SetTimeout(timeout)

	if version, _, err := sh.Version(); err != nil {
		log.Printf("ERROR: IPFS node at %s is unreachable: %v (backups will fail until it recovers)", cfg.APIURL, err)
	} else {
		log.Printf("INFO: IPFS content store initialized (node %s, version %s, pin-on-write=%t)", cfg.APIURL, version, cfg.PinOnWrite)
	}

	return &ipfsStore{
		sh:         sh,
		pinOnWrite: cfg.PinOnWrite,
	}
}

// countingReader tracks how many bytes the node consumed during an add,
// since the RPC reports the post-chunking size rather than the input size.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Add streams content to the node. With pin-on-write enabled the node pins
// atomically as part of the add; otherwise a separate Pin call is required
// before the content may be considered durable.
func (s *ipfsStore) Add(ctx context.Context, r io.Reader) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, &StoreError{Op: "add", Transient: true, Err: err}
	}

	cr := &countingReader{r: r}
	cid, err := s.sh.Add(cr, shell.Pin(s.pinOnWrite))
	if err != nil {
		return "", 0, classify("add", err)
	}
	return cid, cr.n, nil
}

// Pin asks the node to retain the content indefinitely.
func (s *ipfsStore) Pin(ctx context.Context, cid string) error {
	if err := ctx.Err(); err != nil {
		return &StoreError{Op: "pin", Transient: true, Err: err}
	}
	if err := s.sh.Pin(cid); err != nil {
		return classify("pin", err)
	}
	return nil
}

// Cat retrieves the content behind a cid.
func (s *ipfsStore) Cat(ctx context.Context, cid string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, &StoreError{Op: "cat", Transient: true, Err: err}
	}
	rc, err := s.sh.Cat(cid)
	if err != nil {
		return nil, classify("cat", err)
	}
	return rc, nil
}

// classify decides retryability. API-level errors from the node (invalid
// cid, bad credentials) are permanent; anything that smells like the
// network (timeout, refused connection, EOF mid-transfer) is transient.
func classify(op string, err error) error {
	var apiErr *shell.Error
	if errors.As(err, &apiErr) {
		return &StoreError{Op: op, Transient: false, Err: err}
	}

	// Everything else failed on the wire: url.Error around a dial failure,
	// net.Error timeouts, EOF mid-transfer.
	return &StoreError{Op: op, Transient: true, Err: err}
}
