package stt

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	tritonInput  = "input__0"
	tritonOutput = "output__0"
)

// TritonRecognizer runs a self-hosted speech model behind a Triton
// inference server. The chunk is sent as a single BYTES tensor using the
// binary data extension of the v2 HTTP protocol; the transcript comes back
// as JSON.
type TritonRecognizer struct {
	URL        string
	Model      string
	HTTPClient *http.Client
}

type tritonTensor struct {
	Name       string                 `json:"name"`
	Shape      []int                  `json:"shape,omitempty"`
	Datatype   string                 `json:"datatype,omitempty"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
	Data       []string               `json:"data,omitempty"`
}

type tritonRequest struct {
	Inputs  []tritonTensor `json:"inputs"`
	Outputs []tritonTensor `json:"outputs"`
}

type tritonResponse struct {
	Outputs []tritonTensor `json:"outputs"`
	Error   string         `json:"error"`
}

func NewTritonRecognizer(serverURL, model string) (*TritonRecognizer, error) {
	if serverURL == "" {
		return nil, errors.New("stt: triton server url is required")
	}
	if model == "" {
		return nil, errors.New("stt: triton model name is required")
	}
	if !strings.Contains(serverURL, "://") {
		serverURL = "http://" + serverURL
	}
	return &TritonRecognizer{
		URL:        strings.TrimRight(serverURL, "/"),
		Model:      model,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (tr *TritonRecognizer) Recognize(ctx context.Context, audio []byte) (string, error) {
	// A BYTES element is its length as a little-endian uint32 followed by
	// the raw bytes.
	tensor := make([]byte, 4+len(audio))
	binary.LittleEndian.PutUint32(tensor, uint32(len(audio)))
	copy(tensor[4:], audio)

	header, err := json.Marshal(tritonRequest{
		Inputs: []tritonTensor{{
			Name:       tritonInput,
			Shape:      []int{1},
			Datatype:   "BYTES",
			Parameters: map[string]interface{}{"binary_data_size": len(tensor)},
		}},
		Outputs: []tritonTensor{{
			Name:       tritonOutput,
			Parameters: map[string]interface{}{"binary_data": false},
		}},
	})
	if err != nil {
		return "", errors.Wrap(err, "encode triton request")
	}

	body := make([]byte, 0, len(header)+len(tensor))
	body = append(body, header...)
	body = append(body, tensor...)

	endpoint := fmt.Sprintf("%s/v2/models/%s/infer", tr.URL, tr.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "build triton request")
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Inference-Header-Content-Length", strconv.Itoa(len(header)))

	resp, err := tr.HTTPClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "triton request")
	}
	defer resp.Body.Close()

	var out tritonResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&out)
	if resp.StatusCode/100 != 2 {
		if decodeErr == nil && out.Error != "" {
			return "", errors.Errorf("triton: %s: %s", resp.Status, out.Error)
		}
		return "", errors.Errorf("triton: bad status %s", resp.Status)
	}
	if decodeErr != nil {
		return "", errors.Wrap(decodeErr, "decode triton response")
	}

	for _, o := range out.Outputs {
		if o.Name != tritonOutput {
			continue
		}
		if len(o.Data) == 0 {
			return "", nil
		}
		return o.Data[0], nil
	}
	return "", errors.Errorf("triton: response has no %s tensor", tritonOutput)
}
