package httpapi

import (
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kafkasder-git/panel/internal/audit"
	"github.com/kafkasder-git/panel/internal/ids"
)

// The resource handlers below are deliberately thin. Their job is to prove
// the guard chain end to end; persistence behind them can be swapped for the
// Postgres stores without touching the HTTP surface.

type Member struct {
	ID       string    `json:"id"`
	FullName string    `json:"full_name"`
	Email    string    `json:"email"`
	JoinedAt time.Time `json:"joined_at"`
}

type memberDirectory struct {
	mu      sync.RWMutex
	members map[string]Member
}

func newMemberDirectory() *memberDirectory {
	return &memberDirectory{members: make(map[string]Member)}
}

func (d *memberDirectory) list() []Member {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Member, 0, len(d.members))
	for _, m := range d.members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (d *memberDirectory) add(m Member) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.members[m.ID] = m
}

type Donation struct {
	ID          string    `json:"id"`
	DonorName   string    `json:"donor_name"`
	AmountMinor int64     `json:"amount_minor"`
	Currency    string    `json:"currency"`
	Status      string    `json:"status"`
	ReceivedAt  time.Time `json:"received_at"`
}

type donationBook struct {
	mu        sync.RWMutex
	donations map[string]Donation
}

func newDonationBook() *donationBook {
	return &donationBook{donations: make(map[string]Donation)}
}

func (b *donationBook) list() []Donation {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Donation, 0, len(b.donations))
	for _, d := range b.donations {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (b *donationBook) add(d Donation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.donations[d.ID] = d
}

func (b *donationBook) approve(id string) (Donation, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.donations[id]
	if !ok {
		return Donation{}, false
	}
	d.Status = "approved"
	b.donations[id] = d
	return d, true
}

type Beneficiary struct {
	ID           string    `json:"id"`
	FullName     string    `json:"full_name"`
	NeedCategory string    `json:"need_category"`
	RegisteredAt time.Time `json:"registered_at"`
}

type beneficiaryRegistry struct {
	mu            sync.RWMutex
	beneficiaries map[string]Beneficiary
}

func newBeneficiaryRegistry() *beneficiaryRegistry {
	return &beneficiaryRegistry{beneficiaries: make(map[string]Beneficiary)}
}

func (r *beneficiaryRegistry) list() []Beneficiary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Beneficiary, 0, len(r.beneficiaries))
	for _, b := range r.beneficiaries {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *beneficiaryRegistry) add(b Beneficiary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.beneficiaries[b.ID] = b
}

func (a *API) handleMembers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"members": a.members.list()})
	case http.MethodPost:
		var req struct {
			FullName string `json:"full_name"`
			Email    string `json:"email"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if strings.TrimSpace(req.FullName) == "" || strings.TrimSpace(req.Email) == "" {
			writeError(w, r, http.StatusBadRequest, "full_name and email are required")
			return
		}
		m := Member{
			ID:       ids.New(),
			FullName: strings.TrimSpace(req.FullName),
			Email:    strings.ToLower(strings.TrimSpace(req.Email)),
			JoinedAt: time.Now().UTC(),
		}
		a.members.add(m)
		a.auditAction(r, "member.create", map[string]any{"member_id": m.ID})
		writeJSON(w, http.StatusCreated, m)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleListDonations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"donations": a.donations.list()})
}

func (a *API) handleApproveDonation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req struct {
		DonationID string `json:"donation_id"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.DonationID) == "" {
		writeError(w, r, http.StatusBadRequest, "donation_id is required")
		return
	}
	d, ok := a.donations.approve(req.DonationID)
	if !ok {
		writeError(w, r, http.StatusNotFound, "donation not found")
		return
	}
	a.auditAction(r, "donation.approve", map[string]any{"donation_id": d.ID})
	writeJSON(w, http.StatusOK, d)
}

func (a *API) handleBeneficiaries(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"beneficiaries": a.beneficiaries.list()})
	case http.MethodPost:
		var req struct {
			FullName     string `json:"full_name"`
			NeedCategory string `json:"need_category"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if strings.TrimSpace(req.FullName) == "" {
			writeError(w, r, http.StatusBadRequest, "full_name is required")
			return
		}
		b := Beneficiary{
			ID:           ids.New(),
			FullName:     strings.TrimSpace(req.FullName),
			NeedCategory: strings.TrimSpace(req.NeedCategory),
			RegisteredAt: time.Now().UTC(),
		}
		a.beneficiaries.add(b)
		a.auditAction(r, "beneficiary.create", map[string]any{"beneficiary_id": b.ID})
		writeJSON(w, http.StatusCreated, b)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) auditAction(r *http.Request, event string, fields map[string]any) {
	ctx := audit.WithRequestID(r.Context(), RequestIDFromContext(r.Context()))
	_ = audit.LogEvent(ctx, event, fields)
}
