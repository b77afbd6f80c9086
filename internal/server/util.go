package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

// batchResp reports a fan-out operation's partial failures keyed by entry
// id; an absent id succeeded.
type batchResp struct {
	OK     bool              `json:"ok"`
	Errors map[string]string `json:"errors,omitempty"`
}

// writeBatchResult renders a StopAll/RestartAll outcome: 200 if every entry
// succeeded, 207 (Multi-Status) if some failed or timed out.
func writeBatchResult(c *gin.Context, failures map[string]error) {
	if len(failures) == 0 {
		writeJSON(c, http.StatusOK, batchResp{OK: true})
		return
	}
	errs := make(map[string]string, len(failures))
	for id, err := range failures {
		errs[id] = err.Error()
	}
	writeJSON(c, http.StatusMultiStatus, batchResp{OK: false, Errors: errs})
}

// isSafeID validates entry ids to avoid path traversal when used to name
// a log file on disk. Allowed characters: A-Z a-z 0-9 . _ -
func isSafeID(s string) bool {
	if s == "" {
		return false
	}
	if strings.Contains(s, "..") {
		return false
	}
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '_' || r == '-' {
			continue
		}
		return false
	}
	if strings.ContainsAny(s, "/\\") {
		return false
	}
	return true
}

func writeJSON(c *gin.Context, code int, v any) {
	c.Header("Content-Type", "application/json")
	c.Status(code)
	_ = json.NewEncoder(c.Writer).Encode(v)
}
