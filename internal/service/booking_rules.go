package service

import (
	"fmt"
	"time"

	"paname-consulting/backend/config"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// bookingRules 时段网格与取消时限，唯一权威实现（前端的同类校验仅作提示）
type bookingRules struct {
	openMin  int // 自零点起的分钟数
	closeMin int // 不含
	stepMin  int
	cutoff   time.Duration
	loc      *time.Location
}

func newBookingRules(cfg *config.BookingConfig) *bookingRules {
	open, _ := parseClock(cfg.OpeningTime)
	closing, _ := parseClock(cfg.ClosingTime)
	step := cfg.SlotMinutes
	if step <= 0 {
		step = 30
	}
	return &bookingRules{
		openMin:  open,
		closeMin: closing,
		stepMin:  step,
		cutoff:   cfg.CancelCutoff,
		loc:      cfg.Location(),
	}
}

// parseClock 严格解析 HH:MM，返回自零点起的分钟数
func parseClock(s string) (int, error) {
	if len(s) != len(timeLayout) {
		return 0, fmt.Errorf("format HH:MM attendu")
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Grid 全部可预约时段，升序
func (r *bookingRules) Grid() []string {
	var slots []string
	for m := r.openMin; m < r.closeMin; m += r.stepMin {
		slots = append(slots, fmt.Sprintf("%02d:%02d", m/60, m%60))
	}
	return slots
}

// OnGrid 时段是否落在营业时间内的网格上
func (r *bookingRules) OnGrid(hhmm string) bool {
	m, err := parseClock(hhmm)
	if err != nil {
		return false
	}
	return m >= r.openMin && m < r.closeMin && (m-r.openMin)%r.stepMin == 0
}

// ParseDate 严格解析 YYYY-MM-DD（预约时区零点）
func (r *bookingRules) ParseDate(s string) (time.Time, error) {
	if len(s) != len(dateLayout) {
		return time.Time{}, fmt.Errorf("format YYYY-MM-DD attendu")
	}
	return time.ParseInLocation(dateLayout, s, r.loc)
}

// Today 预约时区下的今天
func (r *bookingRules) Today(now time.Time) string {
	return now.In(r.loc).Format(dateLayout)
}

// StartsAt 预约开始的绝对时刻
func (r *bookingRules) StartsAt(date, hhmm string) (time.Time, error) {
	return time.ParseInLocation(dateLayout+" "+timeLayout, date+" "+hhmm, r.loc)
}

// WithinCutoff 距开始不超过 cutoff（含边界）时客户不可自行取消
func (r *bookingRules) WithinCutoff(startsAt, now time.Time) bool {
	return startsAt.Sub(now) <= r.cutoff
}
