package client

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/inkbook/internal/model"
	"github.com/hitoshi/inkbook/internal/repository"
	"github.com/hitoshi/inkbook/internal/security"
)

// --- モック定義 ---

type mockClientRepo struct {
	findByIDFn     func(ctx context.Context, id int) (*model.Client, error)
	listByUserIDFn func(ctx context.Context, userID int) ([]*model.Client, error)
	createFn       func(ctx context.Context, client *model.Client) error
	updateFn       func(ctx context.Context, client *model.Client) (bool, error)
	deleteFn       func(ctx context.Context, id int) (bool, error)
	searchFn       func(ctx context.Context, userID int, term string) ([]*model.Client, error)
}

func (m *mockClientRepo) FindByID(ctx context.Context, id int) (*model.Client, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockClientRepo) ListByUserID(ctx context.Context, userID int) ([]*model.Client, error) {
	if m.listByUserIDFn != nil {
		return m.listByUserIDFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockClientRepo) Create(ctx context.Context, client *model.Client) error {
	if m.createFn != nil {
		return m.createFn(ctx, client)
	}
	client.ID = 1
	return nil
}

func (m *mockClientRepo) Update(ctx context.Context, client *model.Client) (bool, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, client)
	}
	return true, nil
}

func (m *mockClientRepo) Delete(ctx context.Context, id int) (bool, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return true, nil
}

func (m *mockClientRepo) Search(ctx context.Context, userID int, term string) ([]*model.Client, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, userID, term)
	}
	return nil, nil
}

func (m *mockClientRepo) ListAll(_ context.Context) ([]*model.Client, error) {
	return nil, nil
}

type mockUserRepo struct {
	findByIDFn func(ctx context.Context, id int) (*model.User, error)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id int) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return &model.User{ID: id, Name: "Artist"}, nil
}

func (m *mockUserRepo) FindByEmail(_ context.Context, _ string) (*model.User, error) {
	return nil, nil
}

func (m *mockUserRepo) Create(_ context.Context, _ *model.User) error { return nil }

func (m *mockUserRepo) UpdateName(_ context.Context, _ int, _ string) error { return nil }

func (m *mockUserRepo) UpdatePasswordHash(_ context.Context, _, _ string) error { return nil }

func (m *mockUserRepo) UpdateJotformAPIKey(_ context.Context, _ int, _ string) error { return nil }

func (m *mockUserRepo) ListAll(_ context.Context) ([]*model.User, error) { return nil, nil }

type mockImporter struct {
	getClientsFn func(ctx context.Context, apiKey string) ([]model.ImportedClient, error)
}

func (m *mockImporter) GetClientsFromFirstForm(ctx context.Context, apiKey string) ([]model.ImportedClient, error) {
	if m.getClientsFn != nil {
		return m.getClientsFn(ctx, apiKey)
	}
	return nil, nil
}

// noopSanitizer はテスト用のサニタイザ。入力をそのまま返す。
type noopSanitizer struct{}

func (noopSanitizer) Sanitize(s string) string { return s }

// --- compile-time interface checks ---
var _ repository.ClientRepository = (*mockClientRepo)(nil)
var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ LeadImporter = (*mockImporter)(nil)

func newTestService(clientRepo *mockClientRepo, userRepo *mockUserRepo, importer *mockImporter) *Service {
	if clientRepo == nil {
		clientRepo = &mockClientRepo{}
	}
	if userRepo == nil {
		userRepo = &mockUserRepo{}
	}
	if importer == nil {
		importer = &mockImporter{}
	}
	return NewService(clientRepo, userRepo, importer, noopSanitizer{})
}

// --- テスト ---

func TestCreate_Succeeds(t *testing.T) {
	ctx := context.Background()

	var created *model.Client
	clientRepo := &mockClientRepo{
		createFn: func(ctx context.Context, client *model.Client) error {
			client.ID = 10
			created = client
			return nil
		},
	}

	svc := newTestService(clientRepo, nil, nil)

	client, err := svc.Create(ctx, 1, ClientInput{
		Name:  "  Aoi Tanaka  ",
		Email: "aoi@example.com",
		Phone: "09012345678",
		Notes: "prefers fine line work",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if client.ID != 10 {
		t.Errorf("client ID = %d, want 10", client.ID)
	}
	if created.Name != "Aoi Tanaka" {
		t.Errorf("name = %q, want trimmed %q", created.Name, "Aoi Tanaka")
	}
	if created.UserID != 1 {
		t.Errorf("user ID = %d, want 1", created.UserID)
	}
}

func TestCreate_MissingName_ReturnsValidationError(t *testing.T) {
	ctx := context.Background()

	svc := newTestService(nil, nil, nil)

	_, err := svc.Create(ctx, 1, ClientInput{Email: "no-name@example.com"})
	var valErr *model.ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := valErr.Fields["name"]; !ok {
		t.Errorf("expected name field in validation error, got %v", valErr.Fields)
	}
}

func TestGet_OtherOwnersClient_ReturnsNotFound(t *testing.T) {
	ctx := context.Background()

	clientRepo := &mockClientRepo{
		findByIDFn: func(ctx context.Context, id int) (*model.Client, error) {
			return &model.Client{ID: id, UserID: 99, Name: "Someone"}, nil
		},
	}

	svc := newTestService(clientRepo, nil, nil)

	_, err := svc.Get(ctx, 1, 5)
	var notFoundErr *model.NotFoundError
	if !errors.As(err, &notFoundErr) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestUpdate_Succeeds(t *testing.T) {
	ctx := context.Background()

	clientRepo := &mockClientRepo{
		findByIDFn: func(ctx context.Context, id int) (*model.Client, error) {
			return &model.Client{ID: id, UserID: 1, Name: "Old Name"}, nil
		},
	}

	svc := newTestService(clientRepo, nil, nil)

	client, err := svc.Update(ctx, 1, 5, ClientInput{Name: "New Name", Phone: "0120"})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if client.Name != "New Name" {
		t.Errorf("name = %q, want %q", client.Name, "New Name")
	}
	if client.Phone != "0120" {
		t.Errorf("phone = %q, want %q", client.Phone, "0120")
	}
}

func TestDelete_MissingClient_ReturnsNotFound(t *testing.T) {
	ctx := context.Background()

	svc := newTestService(&mockClientRepo{
		findByIDFn: func(ctx context.Context, id int) (*model.Client, error) {
			return nil, nil
		},
	}, nil, nil)

	err := svc.Delete(ctx, 1, 123)
	var notFoundErr *model.NotFoundError
	if !errors.As(err, &notFoundErr) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestSearch_EmptyTerm_ReturnsFullList(t *testing.T) {
	ctx := context.Background()

	clientRepo := &mockClientRepo{
		listByUserIDFn: func(ctx context.Context, userID int) ([]*model.Client, error) {
			return []*model.Client{{ID: 1, UserID: userID, Name: "Aoi"}}, nil
		},
		searchFn: func(ctx context.Context, userID int, term string) ([]*model.Client, error) {
			t.Fatal("search must not be called for empty term")
			return nil, nil
		},
	}

	svc := newTestService(clientRepo, nil, nil)

	clients, err := svc.Search(ctx, 1, "   ")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(clients) != 1 {
		t.Errorf("clients = %d, want 1", len(clients))
	}
}

func TestSearch_DelegatesTermToRepository(t *testing.T) {
	ctx := context.Background()

	var searchedTerm string
	clientRepo := &mockClientRepo{
		searchFn: func(ctx context.Context, userID int, term string) ([]*model.Client, error) {
			searchedTerm = term
			return nil, nil
		},
	}

	svc := newTestService(clientRepo, nil, nil)

	if _, err := svc.Search(ctx, 1, " tanaka "); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if searchedTerm != "tanaka" {
		t.Errorf("search term = %q, want trimmed %q", searchedTerm, "tanaka")
	}
}

func TestSyncJotForm_ImportsNewLeadsSkippingKnownEmails(t *testing.T) {
	ctx := context.Background()

	userRepo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id int) (*model.User, error) {
			return &model.User{ID: id, JotformAPIKey: "api-key-1"}, nil
		},
	}

	var usedAPIKey string
	importer := &mockImporter{
		getClientsFn: func(ctx context.Context, apiKey string) ([]model.ImportedClient, error) {
			usedAPIKey = apiKey
			return []model.ImportedClient{
				{Name: "Aoi Tanaka", Email: "aoi@example.com", Phone: "090"},
				{Name: "Known Person", Email: "KNOWN@example.com"},
				{Name: "Aoi Tanaka", Email: "aoi@example.com"}, // 同一バッチ内の重複
				{Email: "noname@example.com"},                  // 名前なし: emailを名前にする
			}, nil
		},
	}

	var createdClients []*model.Client
	clientRepo := &mockClientRepo{
		listByUserIDFn: func(ctx context.Context, userID int) ([]*model.Client, error) {
			return []*model.Client{{ID: 1, UserID: userID, Email: "known@example.com"}}, nil
		},
		createFn: func(ctx context.Context, client *model.Client) error {
			client.ID = len(createdClients) + 100
			createdClients = append(createdClients, client)
			return nil
		},
	}

	svc := newTestService(clientRepo, userRepo, importer)

	count, err := svc.SyncJotForm(ctx, 1)
	if err != nil {
		t.Fatalf("SyncJotForm() error = %v", err)
	}

	if usedAPIKey != "api-key-1" {
		t.Errorf("api key = %q, want %q", usedAPIKey, "api-key-1")
	}
	if count != 2 {
		t.Fatalf("imported count = %d, want 2", count)
	}
	if createdClients[0].Name != "Aoi Tanaka" {
		t.Errorf("first imported name = %q, want %q", createdClients[0].Name, "Aoi Tanaka")
	}
	if createdClients[1].Name != "noname@example.com" {
		t.Errorf("fallback name = %q, want email", createdClients[1].Name)
	}
}

func TestSyncJotForm_SanitizesImportedFields(t *testing.T) {
	ctx := context.Background()

	userRepo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id int) (*model.User, error) {
			return &model.User{ID: id, JotformAPIKey: "api-key-1"}, nil
		},
	}

	// 外部フォーム由来の回答にはマークアップが混入し得る
	importer := &mockImporter{
		getClientsFn: func(ctx context.Context, apiKey string) ([]model.ImportedClient, error) {
			return []model.ImportedClient{
				{
					Name:  "<script>alert(1)</script>Mallory",
					Email: "mallory@example.com",
					Phone: "<b>090-1234-5678</b>",
				},
			}, nil
		},
	}

	var createdClients []*model.Client
	clientRepo := &mockClientRepo{
		createFn: func(ctx context.Context, client *model.Client) error {
			client.ID = len(createdClients) + 100
			createdClients = append(createdClients, client)
			return nil
		},
	}

	svc := NewService(clientRepo, userRepo, importer, security.NewContentSanitizer())

	count, err := svc.SyncJotForm(ctx, 1)
	if err != nil {
		t.Fatalf("SyncJotForm() error = %v", err)
	}
	if count != 1 {
		t.Fatalf("imported count = %d, want 1", count)
	}

	got := createdClients[0]
	if got.Name != "Mallory" {
		t.Errorf("imported name = %q, want %q", got.Name, "Mallory")
	}
	if got.Email != "mallory@example.com" {
		t.Errorf("imported email = %q, want %q", got.Email, "mallory@example.com")
	}
	if got.Phone != "090-1234-5678" {
		t.Errorf("imported phone = %q, want %q", got.Phone, "090-1234-5678")
	}
}

func TestSyncJotForm_MissingAPIKey_ReturnsValidationError(t *testing.T) {
	ctx := context.Background()

	userRepo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id int) (*model.User, error) {
			return &model.User{ID: id}, nil
		},
	}

	svc := newTestService(nil, userRepo, nil)

	_, err := svc.SyncJotForm(ctx, 1)
	var valErr *model.ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := valErr.Fields["jotform_api_key"]; !ok {
		t.Errorf("expected jotform_api_key field, got %v", valErr.Fields)
	}
}
