package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"paname-consulting/backend/config"
	"paname-consulting/backend/internal/dto"
	"paname-consulting/backend/internal/model"
)

// ── 测试辅助 ──

func testBookingConfig() *config.BookingConfig {
	return &config.BookingConfig{
		OpeningTime:   "09:00",
		ClosingTime:   "17:00",
		SlotMinutes:   30,
		CancelCutoff:  2 * time.Hour,
		Timezone:      "Europe/Paris",
		SlotCacheTTL:  5 * time.Minute,
		ExportMaxDays: 31,
	}
}

func paris(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Fatalf("加载时区失败: %v", err)
	}
	return loc
}

func setupTestRendezvousService(t *testing.T, now time.Time) (*rendezvousService, *mockRepos, *mockCache) {
	t.Helper()
	repo, mocks := setupTestRepo()
	cache := newMockCache()
	svc := NewRendezvousService(testBookingConfig(), repo, cache, zap.NewNop()).(*rendezvousService)
	svc.now = func() time.Time { return now }
	return svc, mocks, cache
}

func bookReq(date, hhmm string) *dto.BookRendezvousRequest {
	return &dto.BookRendezvousRequest{
		FirstName:      "Awa",
		LastName:       "Diallo",
		Email:          "awa@example.com",
		Phone:          "+33600000000",
		Destination:    "Canada",
		EducationLevel: "Licence",
		FieldOfStudy:   "Informatique",
		Date:           date,
		Time:           hhmm,
	}
}

func seedRendezvous(repo *mockRendezvousRepo, owner, date, hhmm string, status model.RendezvousStatus) *model.Rendezvous {
	return repo.put(&model.Rendezvous{
		UserID: owner, FirstName: "Awa", LastName: "Diallo", Email: "awa@example.com",
		Phone: "+33600000000", Destination: "Canada", EducationLevel: "Licence",
		FieldOfStudy: "Informatique", Date: date, Time: hhmm, Status: status,
	})
}

func expectKind(t *testing.T, err, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("期望 %v，实际: %v", kind, err)
	}
}

// ── Book ──

func TestBook_ThenSameSlotOccupied(t *testing.T) {
	now := time.Date(2025, 5, 20, 10, 0, 0, 0, paris(t))
	svc, _, _ := setupTestRendezvousService(t, now)
	ctx := context.Background()

	first, err := svc.Book(ctx, bookReq("2025-06-01", "09:00"), testClient)
	if err != nil {
		t.Fatalf("Book 应成功: %v", err)
	}
	if first.Status != string(model.RendezvousPending) {
		t.Errorf("期望 pending，实际 %s", first.Status)
	}
	if first.UserID != testClient.UserID {
		t.Errorf("预约应归属预约人，实际 %s", first.UserID)
	}

	_, err = svc.Book(ctx, bookReq("2025-06-01", "09:00"), testOtherClient)
	expectKind(t, err, ErrSlotOccupied)
}

func TestBook_Validation(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 10, 0, 0, paris(t))

	tests := []struct {
		name   string
		mutate func(r *dto.BookRendezvousRequest)
	}{
		{"过去日期", func(r *dto.BookRendezvousRequest) { r.Date = "2025-05-31" }},
		{"日期格式错误", func(r *dto.BookRendezvousRequest) { r.Date = "01/06/2025" }},
		{"不在网格上", func(r *dto.BookRendezvousRequest) { r.Time = "09:15" }},
		{"营业结束时刻", func(r *dto.BookRendezvousRequest) { r.Time = "17:00" }},
		{"营业开始前", func(r *dto.BookRendezvousRequest) { r.Time = "08:30" }},
		{"时间格式错误", func(r *dto.BookRendezvousRequest) { r.Time = "9:00" }},
		{"当天已过时段", func(r *dto.BookRendezvousRequest) { r.Date = "2025-06-01"; r.Time = "10:00" }},
		{"邮箱非法", func(r *dto.BookRendezvousRequest) { r.Email = "not-an-email" }},
		{"缺少姓名", func(r *dto.BookRendezvousRequest) { r.FirstName = "  " }},
		{"缺少电话", func(r *dto.BookRendezvousRequest) { r.Phone = "" }},
		{"目的地 Autre 未补充", func(r *dto.BookRendezvousRequest) { r.Destination = "Autre" }},
		{"专业 Autre 未补充", func(r *dto.BookRendezvousRequest) { r.FieldOfStudy = "Autre" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mocks, _ := setupTestRendezvousService(t, now)
			req := bookReq("2025-06-02", "09:00")
			tt.mutate(req)

			_, err := svc.Book(context.Background(), req, testClient)
			expectKind(t, err, ErrValidation)
			if Detail(err) == "" {
				t.Error("校验错误应带有具体原因")
			}
			if len(mocks.rendezvous.items) != 0 {
				t.Error("校验失败不应写库")
			}
		})
	}
}

func TestBook_TodayFutureSlotAllowed(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 10, 0, 0, paris(t))
	svc, _, _ := setupTestRendezvousService(t, now)

	if _, err := svc.Book(context.Background(), bookReq("2025-06-01", "10:30"), testClient); err != nil {
		t.Fatalf("当天未开始的时段应可预约: %v", err)
	}
}

func TestBook_OtherChoiceUsesOverride(t *testing.T) {
	now := time.Date(2025, 5, 20, 10, 0, 0, 0, paris(t))
	svc, _, _ := setupTestRendezvousService(t, now)

	req := bookReq("2025-06-01", "11:00")
	req.Destination = "Autre"
	req.DestinationOther = "Japon"
	req.FieldOfStudy = "Autre"
	req.FieldOfStudyOther = "Architecture"

	resp, err := svc.Book(context.Background(), req, testClient)
	if err != nil {
		t.Fatalf("Book 应成功: %v", err)
	}
	if resp.Destination != "Japon" || resp.FieldOfStudy != "Architecture" {
		t.Errorf("应存储补充文本，实际 %s / %s", resp.Destination, resp.FieldOfStudy)
	}
}

func TestBook_RequiresAuthenticatedActor(t *testing.T) {
	now := time.Date(2025, 5, 20, 10, 0, 0, 0, paris(t))
	svc, _, _ := setupTestRendezvousService(t, now)

	_, err := svc.Book(context.Background(), bookReq("2025-06-01", "09:00"), Actor{})
	expectKind(t, err, ErrForbidden)
}

func TestBook_CancelledSlotCanBeRebooked(t *testing.T) {
	now := time.Date(2025, 5, 20, 10, 0, 0, 0, paris(t))
	svc, mocks, _ := setupTestRendezvousService(t, now)
	seedRendezvous(mocks.rendezvous, testOtherClient.UserID, "2025-06-01", "09:00", model.RendezvousCancelled)
	seedRendezvous(mocks.rendezvous, testOtherClient.UserID, "2025-06-01", "09:30", model.RendezvousCompleted)

	if _, err := svc.Book(context.Background(), bookReq("2025-06-01", "09:00"), testClient); err != nil {
		t.Fatalf("已取消的时段应可再次预约: %v", err)
	}
	if _, err := svc.Book(context.Background(), bookReq("2025-06-01", "09:30"), testClient); err != nil {
		t.Fatalf("已完成的时段不再占用: %v", err)
	}
}

func TestBook_ConcurrentSameSlot_OneWinner(t *testing.T) {
	now := time.Date(2025, 5, 20, 10, 0, 0, 0, paris(t))
	svc, _, _ := setupTestRendezvousService(t, now)

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Book(context.Background(), bookReq("2025-06-01", "14:00"), testClient)
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrSlotOccupied):
		default:
			t.Fatalf("意外错误: %v", err)
		}
	}
	if won != 1 {
		t.Errorf("同一时段只能有 1 个成功，实际 %d", won)
	}
}

func TestBook_StorageFailureIsUnavailable(t *testing.T) {
	now := time.Date(2025, 5, 20, 10, 0, 0, 0, paris(t))
	svc, mocks, _ := setupTestRendezvousService(t, now)
	mocks.rendezvous.err = errors.New("connection refused")

	_, err := svc.Book(context.Background(), bookReq("2025-06-01", "09:00"), testClient)
	expectKind(t, err, ErrUnavailable)
	if errors.Is(err, ErrSlotOccupied) || errors.Is(err, ErrValidation) {
		t.Error("基础设施错误不应混入领域错误类别")
	}
}

// ── Confirm ──

func TestConfirm_PendingToConfirmed(t *testing.T) {
	now := time.Date(2025, 5, 20, 10, 0, 0, 0, paris(t))
	svc, mocks, cache := setupTestRendezvousService(t, now)
	rdv := seedRendezvous(mocks.rendezvous, testClient.UserID, "2025-06-01", "09:00", model.RendezvousPending)

	resp, err := svc.Confirm(context.Background(), rdv.RendezvousID, testClient)
	if err != nil {
		t.Fatalf("Confirm 应成功: %v", err)
	}
	if resp.Status != string(model.RendezvousConfirmed) || resp.ConfirmedAt == nil {
		t.Errorf("状态应为 confirmed 且记录确认时间: %+v", resp)
	}
	if len(cache.invalidated) == 0 || cache.invalidated[0] != "2025-06-01" {
		t.Errorf("写入后应清除当日时段缓存，实际 %v", cache.invalidated)
	}
}

func TestConfirm_TwiceRejectedOnce(t *testing.T) {
	now := time.Date(2025, 5, 20, 10, 0, 0, 0, paris(t))
	svc, mocks, _ := setupTestRendezvousService(t, now)
	rdv := seedRendezvous(mocks.rendezvous, testClient.UserID, "2025-06-01", "09:00", model.RendezvousPending)

	if _, err := svc.Confirm(context.Background(), rdv.RendezvousID, testAdmin); err != nil {
		t.Fatalf("第一次 Confirm 应成功: %v", err)
	}
	_, err := svc.Confirm(context.Background(), rdv.RendezvousID, testAdmin)
	expectKind(t, err, ErrInvalidTransition)
}

func TestConfirm_OtherClientForbidden(t *testing.T) {
	now := time.Date(2025, 5, 20, 10, 0, 0, 0, paris(t))
	svc, mocks, _ := setupTestRendezvousService(t, now)
	rdv := seedRendezvous(mocks.rendezvous, testClient.UserID, "2025-06-01", "09:00", model.RendezvousPending)

	_, err := svc.Confirm(context.Background(), rdv.RendezvousID, testOtherClient)
	expectKind(t, err, ErrForbidden)
	if got := mocks.rendezvous.stored(rdv.RendezvousID); got.Status != model.RendezvousPending {
		t.Errorf("越权操作不应改变状态，实际 %s", got.Status)
	}
}

func TestConfirm_NotFound(t *testing.T) {
	now := time.Date(2025, 5, 20, 10, 0, 0, 0, paris(t))
	svc, _, _ := setupTestRendezvousService(t, now)

	_, err := svc.Confirm(context.Background(), "missing", testAdmin)
	expectKind(t, err, ErrRendezvousNotFound)
}

func TestConfirm_ConcurrentOneWinner(t *testing.T) {
	now := time.Date(2025, 5, 20, 10, 0, 0, 0, paris(t))
	svc, mocks, _ := setupTestRendezvousService(t, now)
	rdv := seedRendezvous(mocks.rendezvous, testClient.UserID, "2025-06-01", "09:00", model.RendezvousPending)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Confirm(context.Background(), rdv.RendezvousID, testAdmin)
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrInvalidTransition):
		default:
			t.Fatalf("意外错误: %v", err)
		}
	}
	if won != 1 {
		t.Errorf("并发确认只能有 1 个成功，实际 %d", won)
	}
}

// ── Complete ──

func TestComplete_FromConfirmed(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, paris(t))
	svc, mocks, _ := setupTestRendezvousService(t, now)
	rdv := seedRendezvous(mocks.rendezvous, testClient.UserID, "2025-06-01", "09:00", model.RendezvousConfirmed)

	resp, err := svc.Complete(context.Background(), rdv.RendezvousID, "favorable", testAdmin)
	if err != nil {
		t.Fatalf("Complete 应成功: %v", err)
	}
	if resp.Status != string(model.RendezvousCompleted) || resp.AdminVerdict == nil || *resp.AdminVerdict != "favorable" {
		t.Errorf("应为 completed + favorable: %+v", resp)
	}
}

func TestComplete_FromPendingRejected(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, paris(t))
	svc, mocks, _ := setupTestRendezvousService(t, now)
	rdv := seedRendezvous(mocks.rendezvous, testClient.UserID, "2025-06-01", "09:00", model.RendezvousPending)

	_, err := svc.Complete(context.Background(), rdv.RendezvousID, "favorable", testAdmin)
	expectKind(t, err, ErrInvalidTransition)
}

func TestComplete_ClientForbiddenBeforeAnyCheck(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, paris(t))
	svc, _, _ := setupTestRendezvousService(t, now)

	// 不存在的 id + 非法 verdict：权限检查先于一切
	_, err := svc.Complete(context.Background(), "missing", "maybe", testClient)
	expectKind(t, err, ErrForbidden)
}

func TestComplete_InvalidVerdict(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, paris(t))
	svc, mocks, _ := setupTestRendezvousService(t, now)
	rdv := seedRendezvous(mocks.rendezvous, testClient.UserID, "2025-06-01", "09:00", model.RendezvousConfirmed)

	_, err := svc.Complete(context.Background(), rdv.RendezvousID, "maybe", testAdmin)
	expectKind(t, err, ErrValidation)
}

// ── Cancel ──

func TestCancel_ClientCutoff(t *testing.T) {
	loc := paris(t)
	tests := []struct {
		name    string
		now     time.Time
		wantErr error
	}{
		{"提前 1.5 小时", time.Date(2025, 6, 1, 7, 30, 0, 0, loc), ErrCancellationWindow},
		{"恰好 2 小时", time.Date(2025, 6, 1, 7, 0, 0, 0, loc), ErrCancellationWindow},
		{"已开始", time.Date(2025, 6, 1, 9, 10, 0, 0, loc), ErrCancellationWindow},
		{"提前 2 小时 1 秒", time.Date(2025, 6, 1, 6, 59, 59, 0, loc), nil},
		{"提前 3 小时", time.Date(2025, 6, 1, 6, 0, 0, 0, loc), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mocks, _ := setupTestRendezvousService(t, tt.now)
			rdv := seedRendezvous(mocks.rendezvous, testClient.UserID, "2025-06-01", "09:00", model.RendezvousPending)

			resp, err := svc.Cancel(context.Background(), rdv.RendezvousID, "", testClient)
			if tt.wantErr != nil {
				expectKind(t, err, tt.wantErr)
				if got := mocks.rendezvous.stored(rdv.RendezvousID); got.Status != model.RendezvousPending {
					t.Errorf("拒绝取消时状态不应变化，实际 %s", got.Status)
				}
				return
			}
			if err != nil {
				t.Fatalf("Cancel 应成功: %v", err)
			}
			if resp.Status != string(model.RendezvousCancelled) {
				t.Errorf("期望 cancelled，实际 %s", resp.Status)
			}
			if resp.CancelledBy == nil || *resp.CancelledBy != model.CancelledByClient {
				t.Errorf("cancelled_by 应为 client: %v", resp.CancelledBy)
			}
		})
	}
}

func TestCancel_AdminIgnoresCutoff(t *testing.T) {
	now := time.Date(2025, 6, 1, 8, 45, 0, 0, paris(t))
	svc, mocks, _ := setupTestRendezvousService(t, now)
	rdv := seedRendezvous(mocks.rendezvous, testClient.UserID, "2025-06-01", "09:00", model.RendezvousConfirmed)

	resp, err := svc.Cancel(context.Background(), rdv.RendezvousID, "Consultant indisponible", testAdmin)
	if err != nil {
		t.Fatalf("管理员取消不受时限约束: %v", err)
	}
	if resp.CancelledBy == nil || *resp.CancelledBy != model.CancelledByAdmin {
		t.Errorf("cancelled_by 应为 admin: %v", resp.CancelledBy)
	}
	if resp.CancellationReason == nil || *resp.CancellationReason != "Consultant indisponible" {
		t.Errorf("取消原因未保存: %v", resp.CancellationReason)
	}
}

func TestCancel_FreesSlot(t *testing.T) {
	now := time.Date(2025, 5, 20, 10, 0, 0, 0, paris(t))
	svc, mocks, _ := setupTestRendezvousService(t, now)
	rdv := seedRendezvous(mocks.rendezvous, testClient.UserID, "2025-06-01", "09:00", model.RendezvousPending)

	if _, err := svc.Cancel(context.Background(), rdv.RendezvousID, "", testClient); err != nil {
		t.Fatalf("Cancel 应成功: %v", err)
	}
	if _, err := svc.Book(context.Background(), bookReq("2025-06-01", "09:00"), testOtherClient); err != nil {
		t.Fatalf("取消后时段应释放: %v", err)
	}
}

// ── 终态不可再流转 ──

func TestTerminalStates_NoFurtherTransitions(t *testing.T) {
	now := time.Date(2025, 5, 20, 10, 0, 0, 0, paris(t))

	for _, status := range []model.RendezvousStatus{model.RendezvousCompleted, model.RendezvousCancelled} {
		ops := map[string]func(s *rendezvousService, id string) error{
			"confirm": func(s *rendezvousService, id string) error {
				_, err := s.Confirm(context.Background(), id, testAdmin)
				return err
			},
			"complete": func(s *rendezvousService, id string) error {
				_, err := s.Complete(context.Background(), id, "favorable", testAdmin)
				return err
			},
			"cancel": func(s *rendezvousService, id string) error {
				_, err := s.Cancel(context.Background(), id, "", testAdmin)
				return err
			},
		}
		for name, op := range ops {
			t.Run(string(status)+"/"+name, func(t *testing.T) {
				svc, mocks, _ := setupTestRendezvousService(t, now)
				rdv := seedRendezvous(mocks.rendezvous, testClient.UserID, "2025-06-01", "09:00", status)

				expectKind(t, op(svc, rdv.RendezvousID), ErrInvalidTransition)
				if mocks.rendezvous.updates != 0 {
					t.Error("终态操作不应写库")
				}
			})
		}
	}
}

// ── ListOccupiedSlots ──

func TestListOccupiedSlots_OnlyActive(t *testing.T) {
	now := time.Date(2025, 5, 20, 10, 0, 0, 0, paris(t))
	svc, mocks, cache := setupTestRendezvousService(t, now)
	seedRendezvous(mocks.rendezvous, "u1", "2025-06-01", "14:00", model.RendezvousConfirmed)
	seedRendezvous(mocks.rendezvous, "u2", "2025-06-01", "09:00", model.RendezvousPending)
	seedRendezvous(mocks.rendezvous, "u3", "2025-06-01", "10:00", model.RendezvousCancelled)
	seedRendezvous(mocks.rendezvous, "u4", "2025-06-01", "11:00", model.RendezvousCompleted)
	seedRendezvous(mocks.rendezvous, "u5", "2025-06-02", "09:00", model.RendezvousPending)

	resp, err := svc.ListOccupiedSlots(context.Background(), "2025-06-01")
	if err != nil {
		t.Fatalf("ListOccupiedSlots 应成功: %v", err)
	}
	if strings.Join(resp.Occupied, ",") != "09:00,14:00" {
		t.Errorf("期望 [09:00 14:00]，实际 %v", resp.Occupied)
	}
	if len(resp.Available) != 16-2 {
		t.Errorf("期望 14 个可用时段，实际 %d", len(resp.Available))
	}
	if got := cache.slots["2025-06-01"]; strings.Join(got, ",") != "09:00,14:00" {
		t.Errorf("未命中后应回填缓存，实际 %v", got)
	}
}

func TestListOccupiedSlots_ServedFromCache(t *testing.T) {
	now := time.Date(2025, 5, 20, 10, 0, 0, 0, paris(t))
	svc, mocks, cache := setupTestRendezvousService(t, now)
	cache.slots["2025-06-01"] = []string{"16:30"}
	mocks.rendezvous.err = errors.New("数据库不应被访问")

	resp, err := svc.ListOccupiedSlots(context.Background(), "2025-06-01")
	if err != nil {
		t.Fatalf("缓存命中时不应访问数据库: %v", err)
	}
	if strings.Join(resp.Occupied, ",") != "16:30" {
		t.Errorf("期望缓存值，实际 %v", resp.Occupied)
	}
}

func TestListOccupiedSlots_CacheErrorFallsBack(t *testing.T) {
	now := time.Date(2025, 5, 20, 10, 0, 0, 0, paris(t))
	svc, mocks, cache := setupTestRendezvousService(t, now)
	seedRendezvous(mocks.rendezvous, "u1", "2025-06-01", "15:00", model.RendezvousPending)
	cache.err = errors.New("redis down")

	resp, err := svc.ListOccupiedSlots(context.Background(), "2025-06-01")
	if err != nil {
		t.Fatalf("缓存故障应降级查库: %v", err)
	}
	if strings.Join(resp.Occupied, ",") != "15:00" {
		t.Errorf("期望 [15:00]，实际 %v", resp.Occupied)
	}
}

func TestListOccupiedSlots_NilCache(t *testing.T) {
	repo, mocks := setupTestRepo()
	svc := NewRendezvousService(testBookingConfig(), repo, nil, zap.NewNop())
	seedRendezvous(mocks.rendezvous, "u1", "2030-06-01", "15:00", model.RendezvousPending)

	resp, err := svc.ListOccupiedSlots(context.Background(), "2030-06-01")
	if err != nil {
		t.Fatalf("无缓存时应直接查库: %v", err)
	}
	if len(resp.Occupied) != 1 {
		t.Errorf("期望 1 个占用时段，实际 %v", resp.Occupied)
	}
}

func TestListOccupiedSlots_BookInvalidatesCache(t *testing.T) {
	now := time.Date(2025, 5, 20, 10, 0, 0, 0, paris(t))
	svc, _, cache := setupTestRendezvousService(t, now)
	ctx := context.Background()

	if _, err := svc.ListOccupiedSlots(ctx, "2025-06-01"); err != nil {
		t.Fatalf("ListOccupiedSlots 应成功: %v", err)
	}
	if _, err := svc.Book(ctx, bookReq("2025-06-01", "10:00"), testClient); err != nil {
		t.Fatalf("Book 应成功: %v", err)
	}
	if _, ok := cache.slots["2025-06-01"]; ok {
		t.Fatal("预约后缓存应被清除")
	}

	resp, _ := svc.ListOccupiedSlots(ctx, "2025-06-01")
	if strings.Join(resp.Occupied, ",") != "10:00" {
		t.Errorf("期望 [10:00]，实际 %v", resp.Occupied)
	}
}

func TestListOccupiedSlots_BadDate(t *testing.T) {
	now := time.Date(2025, 5, 20, 10, 0, 0, 0, paris(t))
	svc, _, _ := setupTestRendezvousService(t, now)

	_, err := svc.ListOccupiedSlots(context.Background(), "2025-6-1")
	expectKind(t, err, ErrValidation)
}

// ── 查询 / 删除 ──

func TestGet_OwnerOrAdmin(t *testing.T) {
	now := time.Date(2025, 5, 20, 10, 0, 0, 0, paris(t))
	svc, mocks, _ := setupTestRendezvousService(t, now)
	rdv := seedRendezvous(mocks.rendezvous, testClient.UserID, "2025-06-01", "09:00", model.RendezvousPending)

	if _, err := svc.Get(context.Background(), rdv.RendezvousID, testClient); err != nil {
		t.Errorf("本人应可查看: %v", err)
	}
	if _, err := svc.Get(context.Background(), rdv.RendezvousID, testAdmin); err != nil {
		t.Errorf("管理员应可查看: %v", err)
	}
	_, err := svc.Get(context.Background(), rdv.RendezvousID, testOtherClient)
	expectKind(t, err, ErrForbidden)
}

func TestListMine_OnlyOwn(t *testing.T) {
	now := time.Date(2025, 5, 20, 10, 0, 0, 0, paris(t))
	svc, mocks, _ := setupTestRendezvousService(t, now)
	seedRendezvous(mocks.rendezvous, testClient.UserID, "2025-06-01", "09:00", model.RendezvousPending)
	seedRendezvous(mocks.rendezvous, testClient.UserID, "2025-06-02", "09:00", model.RendezvousCancelled)
	seedRendezvous(mocks.rendezvous, testOtherClient.UserID, "2025-06-01", "10:00", model.RendezvousPending)

	list, total, err := svc.ListMine(context.Background(), &dto.PaginationRequest{}, testClient)
	if err != nil {
		t.Fatalf("ListMine 应成功: %v", err)
	}
	if total != 2 || len(list) != 2 {
		t.Errorf("期望 2 条，实际 total=%d len=%d", total, len(list))
	}
}

func TestList_AdminOnly(t *testing.T) {
	now := time.Date(2025, 5, 20, 10, 0, 0, 0, paris(t))
	svc, mocks, _ := setupTestRendezvousService(t, now)
	seedRendezvous(mocks.rendezvous, testClient.UserID, "2025-06-01", "09:00", model.RendezvousPending)
	seedRendezvous(mocks.rendezvous, testOtherClient.UserID, "2025-06-01", "10:00", model.RendezvousConfirmed)

	_, _, err := svc.List(context.Background(), &dto.RendezvousListRequest{}, testClient)
	expectKind(t, err, ErrForbidden)

	list, total, err := svc.List(context.Background(), &dto.RendezvousListRequest{Status: "confirmed"}, testAdmin)
	if err != nil {
		t.Fatalf("List 应成功: %v", err)
	}
	if total != 1 || list[0].Time != "10:00" {
		t.Errorf("状态过滤不正确: total=%d %+v", total, list)
	}
}

func TestDelete_SoftDeleteFreesSlot(t *testing.T) {
	now := time.Date(2025, 5, 20, 10, 0, 0, 0, paris(t))
	svc, mocks, _ := setupTestRendezvousService(t, now)
	rdv := seedRendezvous(mocks.rendezvous, testClient.UserID, "2025-06-01", "09:00", model.RendezvousPending)

	expectKind(t, svc.Delete(context.Background(), rdv.RendezvousID, testClient), ErrForbidden)

	if err := svc.Delete(context.Background(), rdv.RendezvousID, testAdmin); err != nil {
		t.Fatalf("Delete 应成功: %v", err)
	}
	if mocks.rendezvous.stored(rdv.RendezvousID) == nil {
		t.Error("软删除不应物理删除记录")
	}
	_, err := svc.Get(context.Background(), rdv.RendezvousID, testAdmin)
	expectKind(t, err, ErrRendezvousNotFound)

	if _, err := svc.Book(context.Background(), bookReq("2025-06-01", "09:00"), testOtherClient); err != nil {
		t.Fatalf("删除后时段应释放: %v", err)
	}
}

// ── 规则辅助 ──

func TestBookingRules_Grid(t *testing.T) {
	rules := newBookingRules(testBookingConfig())
	grid := rules.Grid()
	if len(grid) != 16 || grid[0] != "09:00" || grid[len(grid)-1] != "16:30" {
		t.Errorf("网格不正确: %v", grid)
	}
}

func TestFormatCutoff(t *testing.T) {
	if got := formatCutoff(2 * time.Hour); got != "2h" {
		t.Errorf("期望 2h，实际 %s", got)
	}
	if got := formatCutoff(90 * time.Minute); got != "1h30m0s" {
		t.Errorf("期望 1h30m0s，实际 %s", got)
	}
}
