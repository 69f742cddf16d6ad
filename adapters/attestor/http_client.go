package attestor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/ports"
)

// HTTPAttestor requests attestations from a remote attestor service and
// checks them before handing them out.
type HTTPAttestor struct {
	baseURL string
	client  *http.Client
	issuer  common.Address
}

var _ ports.Attestor = (*HTTPAttestor)(nil)

// NewHTTPAttestor creates a client for the attestor at baseURL. A non-zero
// issuer pins the expected signer.
func NewHTTPAttestor(baseURL string, issuer common.Address) *HTTPAttestor {
	return &HTTPAttestor{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		issuer:  issuer,
	}
}

// Attest asks the remote attestor to vouch for subject
func (a *HTTPAttestor) Attest(ctx context.Context, subject common.Address) (core.Attestation, error) {
	body, err := json.Marshal(map[string]string{"address": subject.Hex()})
	if err != nil {
		return core.Attestation{}, fmt.Errorf("%w: %v", core.ErrAttestationFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/attest", bytes.NewReader(body))
	if err != nil {
		return core.Attestation{}, fmt.Errorf("%w: %v", core.ErrIssuerUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return core.Attestation{}, fmt.Errorf("%w: %v", core.ErrIssuerUnavailable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return core.Attestation{}, fmt.Errorf("%w: %v", core.ErrIssuerUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusServiceUnavailable:
		return core.Attestation{}, core.ErrIssuerUnavailable
	case resp.StatusCode != http.StatusOK:
		return core.Attestation{}, fmt.Errorf("%w: attestor returned %d: %s", core.ErrAttestationFailed, resp.StatusCode, bytes.TrimSpace(payload))
	}

	var attestation core.Attestation
	if err := json.Unmarshal(payload, &attestation); err != nil {
		return core.Attestation{}, fmt.Errorf("%w: %v", core.ErrAttestationFailed, err)
	}
	if attestation.Subject != subject {
		return core.Attestation{}, fmt.Errorf("%w: attestation is for %s", core.ErrAttestationFailed, attestation.Subject.Hex())
	}

	signer, err := core.RecoverAttestationIssuer(attestation)
	if err != nil {
		return core.Attestation{}, err
	}
	if signer != attestation.Issuer || (a.issuer != (common.Address{}) && signer != a.issuer) {
		return core.Attestation{}, fmt.Errorf("%w: unexpected signer %s", core.ErrAttestationFailed, signer.Hex())
	}

	return attestation, nil
}
