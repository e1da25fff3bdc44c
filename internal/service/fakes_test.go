package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/noah-isme/school-admin-api/internal/models"
	"github.com/noah-isme/school-admin-api/pkg/mailer"
	"github.com/noah-isme/school-admin-api/pkg/storage"
)

type fakeTx struct {
	calls      int
	rolledBack int
}

func (f *fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	if err := fn(ctx); err != nil {
		f.rolledBack++
		return err
	}
	return nil
}

type fakeSequence struct {
	mu     sync.Mutex
	values map[string]int64
}

func (f *fakeSequence) Next(ctx context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.values == nil {
		f.values = make(map[string]int64)
	}
	f.values[key]++
	return f.values[key], nil
}

type fakeAudit struct {
	entries []models.AuditEntry
}

func (f *fakeAudit) Record(ctx context.Context, entry models.AuditEntry) {
	f.entries = append(f.entries, entry)
}

func (f *fakeAudit) last() models.AuditEntry {
	if len(f.entries) == 0 {
		return models.AuditEntry{}
	}
	return f.entries[len(f.entries)-1]
}

type fakeUploader struct {
	uploads   []storage.UploadInput
	deleted   []string
	failAfter int
}

func (f *fakeUploader) Upload(ctx context.Context, in storage.UploadInput) (*storage.Object, error) {
	if f.failAfter > 0 && len(f.uploads) >= f.failAfter {
		return nil, fmt.Errorf("bucket unavailable")
	}
	f.uploads = append(f.uploads, in)
	key := fmt.Sprintf("%s/%d-%s", in.Folder, len(f.uploads), in.FileName)
	return &storage.Object{Key: key, URL: "https://cdn.example/" + key, ContentType: in.ContentType, Size: int64(len(in.Data))}, nil
}

func (f *fakeUploader) Delete(ctx context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

func testPrincipal(roles []string, permissions ...string) *models.Principal {
	return &models.Principal{UserID: "actor-1", Username: "secretaria", SessionID: "sess-actor", Roles: roles, Permissions: permissions}
}

func staffMeta() models.RequestMeta {
	return models.RequestMeta{Principal: testPrincipal([]string{models.RoleSecretary}), IP: "10.0.0.5", UserAgent: "test"}
}

// fakeUsers is an in-memory user store shared by account-provisioning tests.
type fakeUsers struct {
	users    map[string]*models.User
	roles    map[string][]string
	roleIDs  map[string][]string
	nextID   int
	unlocked []string
}

func newFakeUsers(existing ...models.User) *fakeUsers {
	f := &fakeUsers{users: map[string]*models.User{}, roles: map[string][]string{}, roleIDs: map[string][]string{}}
	for i := range existing {
		u := existing[i]
		f.users[u.ID] = &u
	}
	return f
}

func (f *fakeUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) List(context.Context, models.UserFilter) ([]models.User, int, error) {
	out := make([]models.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (f *fakeUsers) Count(context.Context) (int, error) { return len(f.users), nil }

func (f *fakeUsers) UsernameExists(_ context.Context, username string) (bool, error) {
	for _, u := range f.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUsers) EmailExists(_ context.Context, email, excludeID string) (bool, error) {
	for _, u := range f.users {
		if u.ID != excludeID && models.StringValue(u.Email) == email {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUsers) Create(_ context.Context, user *models.User) error {
	f.nextID++
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeUsers) Update(_ context.Context, user *models.User) error {
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeUsers) SoftDelete(_ context.Context, id string) error {
	delete(f.users, id)
	return nil
}

func (f *fakeUsers) Unlock(_ context.Context, id string) error {
	f.unlocked = append(f.unlocked, id)
	return nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id, hash string, mustChange bool) error {
	u := f.users[id]
	u.PasswordHash = hash
	u.MustChangePassword = mustChange
	return nil
}

func (f *fakeUsers) RoleNames(_ context.Context, userID string) ([]string, error) {
	return f.roles[userID], nil
}

func (f *fakeUsers) ReplaceRoles(_ context.Context, userID string, roleIDs []string) error {
	f.roleIDs[userID] = roleIDs
	f.roles[userID] = roleIDs
	return nil
}

func (f *fakeUsers) AssignRoleByName(_ context.Context, userID, roleName string) error {
	f.roles[userID] = append(f.roles[userID], roleName)
	return nil
}

type fakeNotifier struct {
	messages []*mailer.Message
}

func (f *fakeNotifier) Notify(_ context.Context, msg *mailer.Message) {
	f.messages = append(f.messages, msg)
}
