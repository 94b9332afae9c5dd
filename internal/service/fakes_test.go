package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/relief-coordination/internal/model"
	"github.com/iliyamo/relief-coordination/internal/utils"
)

var t0 = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

func u64(v uint64) *uint64 { return &v }

// clock is a settable time source shared by the services under test.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock { return &clock{t: t0} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func (c *clock) Advance(d time.Duration) { c.Set(c.Now().Add(d)) }

type fakeChallenges struct {
	mu   sync.Mutex
	rows map[string]model.OtpChallenge
}

func newFakeChallenges() *fakeChallenges {
	return &fakeChallenges{rows: map[string]model.OtpChallenge{}}
}

func (f *fakeChallenges) Save(_ context.Context, ch model.OtpChallenge) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch.ConsumedAt = nil
	f.rows[strings.ToLower(ch.Email)] = ch
	return nil
}

func (f *fakeChallenges) Get(_ context.Context, email string) (model.OtpChallenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.rows[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return model.OtpChallenge{}, model.ErrNotFound
	}
	return ch, nil
}

func (f *fakeChallenges) Consume(_ context.Context, email string, issuedAt, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.rows[email]
	if !ok || ch.ConsumedAt != nil || !ch.IssuedAt.Equal(issuedAt) {
		return false, nil
	}
	ch.ConsumedAt = &at
	f.rows[email] = ch
	return true, nil
}

// fakeRefresh mirrors the guarded updates of the MySQL token repository
// with a mutex standing in for row locking.
type fakeRefresh struct {
	mu     sync.Mutex
	nextID uint64
	rows   map[string]*model.RefreshToken
}

func newFakeRefresh() *fakeRefresh { return &fakeRefresh{rows: map[string]*model.RefreshToken{}} }

func (f *fakeRefresh) Store(_ context.Context, t *model.RefreshToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insert(t)
	return nil
}

func (f *fakeRefresh) insert(t *model.RefreshToken) {
	f.nextID++
	t.ID = f.nextID
	cp := *t
	f.rows[t.TokenHash] = &cp
}

func (f *fakeRefresh) Rotate(_ context.Context, oldHash string, next *model.RefreshToken, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	old, ok := f.rows[oldHash]
	if !ok {
		return model.ErrTokenNotFound
	}
	if old.RevokedAt != nil {
		if old.RevokedReason != model.RevokeReasonRotated {
			return model.ErrTokenNotFound
		}
		for _, r := range f.rows {
			if r.FamilyID == old.FamilyID && r.RevokedAt == nil {
				r.RevokedAt, r.RevokedReason = &now, model.RevokeReasonReuse
			}
		}
		return model.ErrTokenReused
	}
	if now.After(old.ExpiresAt) {
		return model.ErrTokenNotFound
	}
	old.RevokedAt, old.RevokedReason = &now, model.RevokeReasonRotated
	next.AdminID, next.FamilyID = old.AdminID, old.FamilyID
	f.insert(next)
	return nil
}

func (f *fakeRefresh) RevokeByHash(_ context.Context, tokenHash, reason string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.rows[tokenHash]; ok && r.RevokedAt == nil {
		r.RevokedAt, r.RevokedReason = &at, reason
	}
	return nil
}

func (f *fakeRefresh) RevokeAllForAdmin(_ context.Context, adminID uint64, reason string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.AdminID == adminID && r.RevokedAt == nil {
			r.RevokedAt, r.RevokedReason = &at, reason
		}
	}
	return nil
}

func (f *fakeRefresh) live(adminID uint64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.rows {
		if r.AdminID == adminID && r.RevokedAt == nil {
			n++
		}
	}
	return n
}

type fakeAdmins struct {
	mu     sync.Mutex
	nextID uint64
	rows   map[uint64]model.AdminIdentity
}

func newFakeAdmins() *fakeAdmins { return &fakeAdmins{rows: map[uint64]model.AdminIdentity{}} }

// add stores a with password hashed at the minimum bcrypt cost.
func (f *fakeAdmins) add(t *testing.T, a model.AdminIdentity, password string) model.AdminIdentity {
	t.Helper()
	hash, err := utils.HashPassword(password, bcrypt.MinCost)
	require.NoError(t, err)
	a.PasswordHash = hash
	require.NoError(t, f.insert(&a))
	return a
}

func (f *fakeAdmins) insert(a *model.AdminIdentity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.Email == a.Email {
			return model.ErrEmailExists
		}
		if r.Username == a.Username {
			return model.ErrUsernameExists
		}
	}
	f.nextID++
	a.ID = f.nextID
	f.rows[a.ID] = *a
	return nil
}

func (f *fakeAdmins) GetByIdentifier(ctx context.Context, identifier string) (model.AdminIdentity, error) {
	if strings.Contains(identifier, "@") {
		return f.GetByEmail(ctx, identifier)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.Username == identifier {
			return r, nil
		}
	}
	return model.AdminIdentity{}, model.ErrNotFound
}

func (f *fakeAdmins) GetByEmail(_ context.Context, email string) (model.AdminIdentity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, r := range f.rows {
		if r.Email == email {
			return r, nil
		}
	}
	return model.AdminIdentity{}, model.ErrNotFound
}

func (f *fakeAdmins) GetByID(_ context.Context, id uint64) (model.AdminIdentity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return model.AdminIdentity{}, model.ErrNotFound
	}
	return r, nil
}

func (f *fakeAdmins) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := f.GetByEmail(ctx, email)
	return err == nil, nil
}

func (f *fakeAdmins) List(_ context.Context) ([]model.AdminIdentity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.AdminIdentity, 0, len(f.rows))
	for _, r := range f.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeAdmins) TouchLastLogin(_ context.Context, id uint64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.rows[id]
	r.LastLoginAt = &at
	f.rows[id] = r
	return nil
}

func (f *fakeAdmins) SetActive(_ context.Context, id uint64, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return model.ErrNotFound
	}
	r.IsActive = active
	f.rows[id] = r
	return nil
}

type fakeInvitations struct {
	mu     sync.Mutex
	nextID uint64
	rows   map[uint64]model.Invitation
	admins *fakeAdmins
}

func newFakeInvitations(admins *fakeAdmins) *fakeInvitations {
	return &fakeInvitations{rows: map[uint64]model.Invitation{}, admins: admins}
}

func (f *fakeInvitations) Create(_ context.Context, inv *model.Invitation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	inv.ID = f.nextID
	f.rows[inv.ID] = *inv
	return nil
}

func (f *fakeInvitations) FindByTokenHash(_ context.Context, tokenHash string) (model.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.TokenHash == tokenHash {
			return r, nil
		}
	}
	return model.Invitation{}, model.ErrInvitationNotFound
}

func (f *fakeInvitations) GetByID(_ context.Context, id uint64) (model.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return model.Invitation{}, model.ErrInvitationNotFound
	}
	return r, nil
}

func (f *fakeInvitations) List(_ context.Context, status model.InvitationStatus) ([]model.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Invitation{}
	for _, r := range f.rows {
		if status == "" || r.Status == status {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeInvitations) UpdateStatus(_ context.Context, inv model.Invitation, from model.InvitationStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.update(inv, from, model.ErrInvalidTransition)
}

func (f *fakeInvitations) update(inv model.Invitation, from model.InvitationStatus, lost error) error {
	cur, ok := f.rows[inv.ID]
	if !ok || cur.Status != from {
		return lost
	}
	f.rows[inv.ID] = inv
	return nil
}

func (f *fakeInvitations) Accept(_ context.Context, inv model.Invitation, admin *model.AdminIdentity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev := f.rows[inv.ID]
	if err := f.update(inv, model.InvitationPending, model.ErrInvitationAlreadyUsed); err != nil {
		return err
	}
	if err := f.admins.insert(admin); err != nil {
		f.rows[inv.ID] = prev
		return err
	}
	return nil
}

// fakeScopes knows provinces 1 and 2; cities 3 and 4 are in province 1,
// city 5 is in province 2.
type fakeScopes struct{}

var cityProvince = map[uint64]uint64{3: 1, 4: 1, 5: 2}

func (fakeScopes) ProvinceExists(_ context.Context, id uint64) (bool, error) {
	return id == 1 || id == 2, nil
}

func (fakeScopes) CityProvince(_ context.Context, cityID uint64) (uint64, error) {
	pid, ok := cityProvince[cityID]
	if !ok {
		return 0, model.ErrNotFound
	}
	return pid, nil
}

type fakeDonations struct {
	mu     sync.Mutex
	nextID uint64
	rows   map[uint64]model.Donation
}

func newFakeDonations() *fakeDonations { return &fakeDonations{rows: map[uint64]model.Donation{}} }

func (f *fakeDonations) Create(_ context.Context, d *model.Donation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	d.ID = f.nextID
	f.rows[d.ID] = *d
	return nil
}

func (f *fakeDonations) GetByID(_ context.Context, id uint64) (model.Donation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.rows[id]
	if !ok {
		return model.Donation{}, model.ErrNotFound
	}
	return d, nil
}

func (f *fakeDonations) List(_ context.Context, q model.DonationQuery) ([]model.Donation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Donation{}
	for _, d := range f.rows {
		if q.Status != "" && d.Status != q.Status {
			continue
		}
		if q.ProvinceID != nil && !sameID(q.ProvinceID, d.ProvinceID) {
			continue
		}
		if q.CityID != nil && !sameID(q.CityID, d.CityID) {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if q.Offset >= len(out) {
		return []model.Donation{}, nil
	}
	out = out[q.Offset:]
	if len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (f *fakeDonations) UpdateStatus(_ context.Context, d model.Donation, from model.DonationStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.rows[d.ID]
	if !ok || cur.Status != from {
		return model.ErrInvalidTransition
	}
	f.rows[d.ID] = d
	return nil
}

type sentMail struct {
	kind  string
	email string
	code  string
	token string
	extra string
}

// recordingNotifier captures mails instead of publishing them.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMail
}

func (n *recordingNotifier) SendOTP(_ context.Context, email, code string, _ time.Time) {
	n.add(sentMail{kind: "otp", email: email, code: code})
}

func (n *recordingNotifier) SendInvitation(_ context.Context, inv model.Invitation, rawToken string) {
	n.add(sentMail{kind: "invitation", email: inv.Email, token: rawToken})
}

func (n *recordingNotifier) SendConfirmation(_ context.Context, toEmail, _ string, _ int64, _ model.DonationType, receiptID string) {
	n.add(sentMail{kind: "confirmation", email: toEmail, extra: receiptID})
}

func (n *recordingNotifier) add(m sentMail) {
	n.mu.Lock()
	n.sent = append(n.sent, m)
	n.mu.Unlock()
}

func (n *recordingNotifier) last() sentMail {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return sentMail{}
	}
	return n.sent[len(n.sent)-1]
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}
