package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/Korbielowski/AutoApply/internal/config"
)

type SecretsHandler struct {
	CfgVal  *atomic.Value // stores config.Config
	SetSite func(site config.Site, password string) error
	SetMail func(site config.Site, password string) error
}

type setPasswordReq struct {
	Site     string `json:"site"`
	Kind     string `json:"kind"` // site (default) | imap
	Password string `json:"password"`
}

func (h SecretsHandler) SetPassword(w http.ResponseWriter, r *http.Request) {
	var req setPasswordReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	if strings.TrimSpace(req.Password) == "" {
		WriteError(w, r, http.StatusBadRequest, "invalid_password", "password is required")
		return
	}

	set := h.SetSite
	switch req.Kind {
	case "", "site":
	case "imap":
		set = h.SetMail
	default:
		WriteError(w, r, http.StatusBadRequest, "invalid_kind", "kind must be site or imap")
		return
	}

	cfg := h.CfgVal.Load().(config.Config)
	for _, s := range cfg.Sites {
		if strings.EqualFold(s.Name, req.Site) {
			if err := set(s, req.Password); err != nil {
				WriteError(w, r, http.StatusBadRequest, "store_failed", "failed to store password: "+err.Error())
				return
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	WriteError(w, r, http.StatusNotFound, "unknown_site", "no configured site named "+req.Site)
}
