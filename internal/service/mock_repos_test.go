package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"paname-consulting/backend/internal/model"
	"paname-consulting/backend/internal/repository"
	pkgerrors "paname-consulting/backend/pkg/errors"
)

// ── Mock UserRepository ──

type mockUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User // key: user_id
	seq   int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, user.Email) {
			return pkgerrors.ErrDuplicate
		}
	}
	if user.UserID == "" {
		m.seq++
		user.UserID = fmt.Sprintf("user-%d", m.seq)
	}
	user.CreatedAt = time.Now()
	user.Version = 1
	cp := *user
	m.users[user.UserID] = &cp
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) Update(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *user
	m.users[user.UserID] = &cp
	return nil
}

// ── Mock RendezvousRepository ──
// 行为与 PostgreSQL 实现对齐：活跃时段唯一（模拟部分唯一索引）、按 version 条件更新

type mockRendezvousRepo struct {
	mu      sync.Mutex
	items   map[string]*model.Rendezvous
	deleted map[string]bool
	seq     int
	updates int
	err     error // 非空时所有方法返回该错误，模拟数据库故障
}

func newMockRendezvousRepo() *mockRendezvousRepo {
	return &mockRendezvousRepo{
		items:   make(map[string]*model.Rendezvous),
		deleted: make(map[string]bool),
	}
}

func cloneRendezvous(r *model.Rendezvous) *model.Rendezvous {
	cp := *r
	return &cp
}

// put 直接写入一条记录（测试数据准备）
func (m *mockRendezvousRepo) put(r *model.Rendezvous) *model.Rendezvous {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.RendezvousID == "" {
		m.seq++
		r.RendezvousID = fmt.Sprintf("rdv-%d", m.seq)
	}
	if r.Version == 0 {
		r.Version = 1
	}
	m.items[r.RendezvousID] = cloneRendezvous(r)
	return r
}

func (m *mockRendezvousRepo) stored(id string) *model.Rendezvous {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.items[id]; ok {
		return cloneRendezvous(r)
	}
	return nil
}

func (m *mockRendezvousRepo) slotTakenLocked(date, hhmm, exceptID string) bool {
	for id, r := range m.items {
		if id == exceptID || m.deleted[id] {
			continue
		}
		if r.Date == date && r.Time == hhmm && r.Status.IsActive() {
			return true
		}
	}
	return false
}

func (m *mockRendezvousRepo) Create(_ context.Context, rdv *model.Rendezvous) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if rdv.Status.IsActive() && m.slotTakenLocked(rdv.Date, rdv.Time, "") {
		return pkgerrors.ErrDuplicate
	}
	m.seq++
	rdv.RendezvousID = fmt.Sprintf("rdv-%d", m.seq)
	rdv.Version = 1
	rdv.CreatedAt = time.Now()
	m.items[rdv.RendezvousID] = cloneRendezvous(rdv)
	return nil
}

func (m *mockRendezvousRepo) GetByID(_ context.Context, id string) (*model.Rendezvous, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if r, ok := m.items[id]; ok && !m.deleted[id] {
		return cloneRendezvous(r), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockRendezvousRepo) ListActiveSlotsByDate(_ context.Context, date string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var slots []string
	for id, r := range m.items {
		if !m.deleted[id] && r.Date == date && r.Status.IsActive() {
			slots = append(slots, r.Time)
		}
	}
	sort.Strings(slots)
	return slots, nil
}

func (m *mockRendezvousRepo) List(_ context.Context, f repository.RendezvousFilter, page repository.Page) ([]model.Rendezvous, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, 0, m.err
	}
	var all []model.Rendezvous
	for id, r := range m.items {
		if m.deleted[id] {
			continue
		}
		if f.UserID != "" && r.UserID != f.UserID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.Date != "" && r.Date != f.Date {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(r.LastName+" "+r.FirstName+" "+r.Email), strings.ToLower(f.Search)) {
			continue
		}
		all = append(all, *r)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Date+all[i].Time > all[j].Date+all[j].Time
	})
	return paginate(all, page), int64(len(all)), nil
}

func (m *mockRendezvousRepo) ListByDateRange(_ context.Context, from, to string) ([]model.Rendezvous, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var all []model.Rendezvous
	for id, r := range m.items {
		if !m.deleted[id] && r.Date >= from && r.Date <= to {
			all = append(all, *r)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Date+all[i].Time < all[j].Date+all[j].Time
	})
	return all, nil
}

func (m *mockRendezvousRepo) Update(_ context.Context, rdv *model.Rendezvous) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	cur, ok := m.items[rdv.RendezvousID]
	if !ok || m.deleted[rdv.RendezvousID] || cur.Version != rdv.Version {
		return pkgerrors.ErrOptimisticLock
	}
	if rdv.Status.IsActive() && m.slotTakenLocked(rdv.Date, rdv.Time, rdv.RendezvousID) {
		return pkgerrors.ErrDuplicate
	}
	rdv.Version++
	m.updates++
	m.items[rdv.RendezvousID] = cloneRendezvous(rdv)
	return nil
}

func (m *mockRendezvousRepo) SoftDelete(_ context.Context, id, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.items[id]; !ok || m.deleted[id] {
		return gorm.ErrRecordNotFound
	}
	m.deleted[id] = true
	return nil
}

// ── Mock ProcedureRepository ──

type mockProcedureRepo struct {
	mu      sync.Mutex
	items   map[string]*model.Procedure
	deleted map[string]string // id → deletion reason
	seq     int
	updates int
	err     error
}

func newMockProcedureRepo() *mockProcedureRepo {
	return &mockProcedureRepo{
		items:   make(map[string]*model.Procedure),
		deleted: make(map[string]string),
	}
}

func cloneProcedure(p *model.Procedure) *model.Procedure {
	cp := *p
	cp.Steps = append(cp.Steps[:0:0], p.Steps...)
	return &cp
}

func (m *mockProcedureRepo) stored(id string) *model.Procedure {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.items[id]; ok {
		return cloneProcedure(p)
	}
	return nil
}

func (m *mockProcedureRepo) Create(_ context.Context, proc *model.Procedure) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if proc.RendezvousID != nil {
		for id, p := range m.items {
			if _, gone := m.deleted[id]; !gone && p.RendezvousID != nil && *p.RendezvousID == *proc.RendezvousID {
				return pkgerrors.ErrDuplicate
			}
		}
	}
	m.seq++
	proc.ProcedureID = fmt.Sprintf("proc-%d", m.seq)
	proc.Version = 1
	proc.CreatedAt = time.Now()
	m.items[proc.ProcedureID] = cloneProcedure(proc)
	return nil
}

func (m *mockProcedureRepo) GetByID(_ context.Context, id string) (*model.Procedure, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if p, ok := m.items[id]; ok {
		if _, gone := m.deleted[id]; !gone {
			return cloneProcedure(p), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockProcedureRepo) GetByRendezvousID(_ context.Context, rendezvousID string) (*model.Procedure, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for id, p := range m.items {
		if _, gone := m.deleted[id]; gone {
			continue
		}
		if p.RendezvousID != nil && *p.RendezvousID == rendezvousID {
			return cloneProcedure(p), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockProcedureRepo) List(_ context.Context, f repository.ProcedureFilter, page repository.Page) ([]model.Procedure, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, 0, m.err
	}
	var all []model.Procedure
	for id, p := range m.items {
		if _, gone := m.deleted[id]; gone {
			continue
		}
		if f.UserID != "" && p.UserID != f.UserID {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		all = append(all, *cloneProcedure(p))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ProcedureID < all[j].ProcedureID })
	return paginate(all, page), int64(len(all)), nil
}

func (m *mockProcedureRepo) Update(_ context.Context, proc *model.Procedure) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	cur, ok := m.items[proc.ProcedureID]
	if _, gone := m.deleted[proc.ProcedureID]; !ok || gone || cur.Version != proc.Version {
		return pkgerrors.ErrOptimisticLock
	}
	proc.Version++
	m.updates++
	m.items[proc.ProcedureID] = cloneProcedure(proc)
	return nil
}

func (m *mockProcedureRepo) SoftDelete(_ context.Context, id, _ string, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.items[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	if _, gone := m.deleted[id]; gone {
		return gorm.ErrRecordNotFound
	}
	m.deleted[id] = reason
	return nil
}

func paginate[T any](all []T, page repository.Page) []T {
	if page.Offset >= len(all) {
		return nil
	}
	end := page.Offset + page.Limit
	if page.Limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[page.Offset:end]
}

// ── Mock Cache（SlotCache + TokenBlacklist）──

type mockCache struct {
	mu          sync.Mutex
	slots       map[string][]string
	blacklist   map[string]time.Duration
	invalidated []string
	err         error
}

func newMockCache() *mockCache {
	return &mockCache{
		slots:     make(map[string][]string),
		blacklist: make(map[string]time.Duration),
	}
}

func (m *mockCache) GetOccupiedSlots(_ context.Context, date string) ([]string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, false, m.err
	}
	s, ok := m.slots[date]
	return s, ok, nil
}

func (m *mockCache) SetOccupiedSlots(_ context.Context, date string, slots []string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.slots[date] = append([]string(nil), slots...)
	return nil
}

func (m *mockCache) InvalidateOccupiedSlots(_ context.Context, date string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidated = append(m.invalidated, date)
	delete(m.slots, date)
	return m.err
}

func (m *mockCache) BlacklistToken(_ context.Context, jti string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.blacklist[jti] = ttl
	return nil
}

func (m *mockCache) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.blacklist[jti]
	return ok, nil
}

// ── 测试辅助 ──

type mockRepos struct {
	user       *mockUserRepo
	rendezvous *mockRendezvousRepo
	procedure  *mockProcedureRepo
}

func setupTestRepo() (*repository.Repository, *mockRepos) {
	m := &mockRepos{
		user:       newMockUserRepo(),
		rendezvous: newMockRendezvousRepo(),
		procedure:  newMockProcedureRepo(),
	}
	return &repository.Repository{
		User:       m.user,
		Rendezvous: m.rendezvous,
		Procedure:  m.procedure,
	}, m
}

var (
	testClient      = Actor{UserID: "client-1", Role: model.RoleClient}
	testOtherClient = Actor{UserID: "client-2", Role: model.RoleClient}
	testAdmin       = Actor{UserID: "admin-1", Role: model.RoleAdmin}
)
