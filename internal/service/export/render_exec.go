package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/tokkyo-ai/tokkyo/internal/model"
)

// ExecRenderer shells out to an external document renderer. The binary
// reads a JSON envelope on stdin and writes the finished DOCX on stdout.
// Used when firms need letterhead templates the in-process renderer
// cannot produce.
type ExecRenderer struct {
	Binary string
}

func (r ExecRenderer) Render(ctx context.Context, matter model.Matter, doc model.SpecDocument, graph model.ClaimGraph) ([]byte, string, error) {
	input, err := json.Marshal(map[string]any{
		"matter": matter,
		"spec":   doc,
		"claims": graph,
	})
	if err != nil {
		return nil, "", fmt.Errorf("render: marshal input: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.Binary)
	cmd.Stdin = bytes.NewReader(input)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, "", fmt.Errorf("render: %s: %w (stderr: %s)", r.Binary, err, stderr.String())
	}
	if stdout.Len() == 0 {
		return nil, "", fmt.Errorf("render: %s produced no output", r.Binary)
	}

	filename := fmt.Sprintf("application-%s.docx", matter.ID)
	return stdout.Bytes(), filename, nil
}
