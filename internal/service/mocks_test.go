package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/emberstore/emberstore/internal/domain"
	"github.com/emberstore/emberstore/internal/repository"
)

// =============================================================================
// Mock Repositories
// =============================================================================

// MockUserRepository is a mock implementation of repository.UserRepository.
type MockUserRepository struct {
	users  map[int64]*domain.User
	nextID int64
	err    error
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[int64]*domain.User), nextID: 1}
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if m.err != nil {
		return m.err
	}
	for _, u := range m.users {
		if u.Username == user.Username || u.Email == user.Email {
			return domain.ErrUserAlreadyExists
		}
	}
	user.ID = m.nextID
	m.nextID++
	m.users[user.ID] = user
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) Update(ctx context.Context, user *domain.User) error {
	if m.err != nil {
		return m.err
	}
	if _, ok := m.users[user.ID]; !ok {
		return domain.ErrUserNotFound
	}
	m.users[user.ID] = user
	return nil
}

func (m *MockUserRepository) Delete(ctx context.Context, id int64) error {
	if _, ok := m.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *MockUserRepository) List(ctx context.Context, opts repository.ListOptions) (*repository.ListResult[domain.User], error) {
	result := &repository.ListResult[domain.User]{
		Offset: opts.Offset,
		Limit:  opts.Limit,
		Total:  int64(len(m.users)),
	}
	for _, u := range m.users {
		result.Items = append(result.Items, u)
	}
	return result, nil
}

func (m *MockUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	for _, u := range m.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	for _, u := range m.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

// addUser seeds a user directly, bypassing validation.
func (m *MockUserRepository) addUser(user *domain.User) *domain.User {
	if user.ID == 0 {
		user.ID = m.nextID
		m.nextID++
	}
	m.users[user.ID] = user
	return user
}

// MockAccessKeyRepository is a mock implementation of repository.AccessKeyRepository.
type MockAccessKeyRepository struct {
	keys   map[string]*domain.AccessKey
	nextID int64
	err    error
	now    func() time.Time
}

func NewMockAccessKeyRepository() *MockAccessKeyRepository {
	return &MockAccessKeyRepository{
		keys:   make(map[string]*domain.AccessKey),
		nextID: 1,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (m *MockAccessKeyRepository) Create(ctx context.Context, key *domain.AccessKey) error {
	if m.err != nil {
		return m.err
	}
	key.ID = m.nextID
	m.nextID++
	m.keys[key.AccessKeyID] = key
	return nil
}

func (m *MockAccessKeyRepository) GetByID(ctx context.Context, id int64) (*domain.AccessKey, error) {
	for _, k := range m.keys {
		if k.ID == id {
			return k, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockAccessKeyRepository) GetByAccessKeyID(ctx context.Context, accessKeyID string) (*domain.AccessKey, error) {
	if m.err != nil {
		return nil, m.err
	}
	if k, ok := m.keys[accessKeyID]; ok {
		return k, nil
	}
	return nil, repository.ErrNotFound
}

func (m *MockAccessKeyRepository) GetActiveByAccessKeyID(ctx context.Context, accessKeyID string) (*domain.AccessKey, error) {
	if m.err != nil {
		return nil, m.err
	}
	k, ok := m.keys[accessKeyID]
	if !ok || k.Status != domain.AccessKeyStatusActive {
		return nil, repository.ErrNotFound
	}
	if k.ExpiresAt != nil && m.now().After(*k.ExpiresAt) {
		return nil, repository.ErrNotFound
	}
	return k, nil
}

func (m *MockAccessKeyRepository) ListByUserID(ctx context.Context, userID int64) ([]*domain.AccessKey, error) {
	if m.err != nil {
		return nil, m.err
	}
	var result []*domain.AccessKey
	for _, k := range m.keys {
		if k.UserID == userID {
			result = append(result, k)
		}
	}
	return result, nil
}

func (m *MockAccessKeyRepository) Update(ctx context.Context, key *domain.AccessKey) error {
	if m.err != nil {
		return m.err
	}
	if _, ok := m.keys[key.AccessKeyID]; !ok {
		return repository.ErrNotFound
	}
	m.keys[key.AccessKeyID] = key
	return nil
}

func (m *MockAccessKeyRepository) UpdateLastUsed(ctx context.Context, id int64) error {
	for _, k := range m.keys {
		if k.ID == id {
			now := m.now()
			k.LastUsedAt = &now
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *MockAccessKeyRepository) Delete(ctx context.Context, id int64) error {
	for akid, k := range m.keys {
		if k.ID == id {
			delete(m.keys, akid)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *MockAccessKeyRepository) DeleteByAccessKeyID(ctx context.Context, accessKeyID string) error {
	if _, ok := m.keys[accessKeyID]; !ok {
		return repository.ErrNotFound
	}
	delete(m.keys, accessKeyID)
	return nil
}

func (m *MockAccessKeyRepository) DeleteExpired(ctx context.Context) (int64, error) {
	var count int64
	for akid, k := range m.keys {
		if k.ExpiresAt != nil && m.now().After(*k.ExpiresAt) {
			delete(m.keys, akid)
			count++
		}
	}
	return count, nil
}

// MockBucketRepository is a mock implementation of repository.BucketRepository.
type MockBucketRepository struct {
	buckets map[string]*domain.Bucket
	nextID  int64
	err     error
}

func NewMockBucketRepository() *MockBucketRepository {
	return &MockBucketRepository{buckets: make(map[string]*domain.Bucket), nextID: 1}
}

func (m *MockBucketRepository) Create(ctx context.Context, bucket *domain.Bucket) error {
	if m.err != nil {
		return m.err
	}
	if _, ok := m.buckets[bucket.Name]; ok {
		return domain.ErrBucketAlreadyExists
	}
	bucket.ID = m.nextID
	m.nextID++
	m.buckets[bucket.Name] = bucket
	return nil
}

func (m *MockBucketRepository) GetByID(ctx context.Context, id int64) (*domain.Bucket, error) {
	for _, b := range m.buckets {
		if b.ID == id {
			return b, nil
		}
	}
	return nil, domain.ErrBucketNotFound
}

func (m *MockBucketRepository) GetByName(ctx context.Context, name string) (*domain.Bucket, error) {
	if m.err != nil {
		return nil, m.err
	}
	if b, ok := m.buckets[name]; ok {
		return b, nil
	}
	return nil, domain.ErrBucketNotFound
}

func (m *MockBucketRepository) List(ctx context.Context, userID int64) ([]*domain.Bucket, error) {
	var result []*domain.Bucket
	for _, b := range m.buckets {
		if userID == 0 || b.OwnerID == userID {
			result = append(result, b)
		}
	}
	return result, nil
}

func (m *MockBucketRepository) Delete(ctx context.Context, id int64) error {
	for name, b := range m.buckets {
		if b.ID == id {
			delete(m.buckets, name)
			return nil
		}
	}
	return domain.ErrBucketNotFound
}

func (m *MockBucketRepository) DeleteByName(ctx context.Context, name string) error {
	if _, ok := m.buckets[name]; !ok {
		return domain.ErrBucketNotFound
	}
	delete(m.buckets, name)
	return nil
}

func (m *MockBucketRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.buckets[name]
	return ok, nil
}

// addBucket seeds a bucket directly.
func (m *MockBucketRepository) addBucket(name string, ownerID int64) *domain.Bucket {
	b := domain.NewBucket(ownerID, name)
	b.ID = m.nextID
	m.nextID++
	m.buckets[name] = b
	return b
}

// MockPolicyRepository is a mock implementation of repository.PolicyRepository.
type MockPolicyRepository struct {
	policies map[uuid.UUID]*domain.PolicyDocument
	order    []uuid.UUID
	err      error
}

func NewMockPolicyRepository() *MockPolicyRepository {
	return &MockPolicyRepository{policies: make(map[uuid.UUID]*domain.PolicyDocument)}
}

func (m *MockPolicyRepository) Create(ctx context.Context, policy *domain.PolicyDocument) error {
	if m.err != nil {
		return m.err
	}
	m.policies[policy.ID] = policy
	m.order = append(m.order, policy.ID)
	return nil
}

func (m *MockPolicyRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.PolicyDocument, error) {
	if m.err != nil {
		return nil, m.err
	}
	if p, ok := m.policies[id]; ok {
		return p, nil
	}
	return nil, repository.ErrNotFound
}

func (m *MockPolicyRepository) ListByBucket(ctx context.Context, bucketName string) ([]*domain.PolicyDocument, error) {
	if m.err != nil {
		return nil, m.err
	}
	var result []*domain.PolicyDocument
	for _, id := range m.order {
		p, ok := m.policies[id]
		if ok && p.Scope == domain.PolicyScopeBucket && p.BucketName == bucketName {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *MockPolicyRepository) ListByUser(ctx context.Context, username string) ([]*domain.PolicyDocument, error) {
	if m.err != nil {
		return nil, m.err
	}
	var result []*domain.PolicyDocument
	for _, id := range m.order {
		p, ok := m.policies[id]
		if ok && p.Scope == domain.PolicyScopeUser && p.Username == username {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *MockPolicyRepository) Update(ctx context.Context, policy *domain.PolicyDocument) error {
	if m.err != nil {
		return m.err
	}
	if _, ok := m.policies[policy.ID]; !ok {
		return repository.ErrNotFound
	}
	m.policies[policy.ID] = policy
	return nil
}

func (m *MockPolicyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.policies[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.policies, id)
	return nil
}

func (m *MockPolicyRepository) DeleteByBucket(ctx context.Context, bucketName string) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	var count int64
	for id, p := range m.policies {
		if p.Scope == domain.PolicyScopeBucket && p.BucketName == bucketName {
			delete(m.policies, id)
			count++
		}
	}
	return count, nil
}

func (m *MockPolicyRepository) DeleteByUser(ctx context.Context, username string) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	var count int64
	for id, p := range m.policies {
		if p.Scope == domain.PolicyScopeUser && p.Username == username {
			delete(m.policies, id)
			count++
		}
	}
	return count, nil
}

// Interface conformance for the mocks.
var (
	_ repository.UserRepository      = (*MockUserRepository)(nil)
	_ repository.AccessKeyRepository = (*MockAccessKeyRepository)(nil)
	_ repository.BucketRepository    = (*MockBucketRepository)(nil)
	_ repository.PolicyRepository    = (*MockPolicyRepository)(nil)
)
