package dto

import (
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterValidators 向 gin 的校验引擎注册自定义标签：
//   - isodate: 严格的 YYYY-MM-DD
//   - hhmm:    严格的 HH:MM（24 小时制）
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	if err := v.RegisterValidation("isodate", strictLayout("2006-01-02")); err != nil {
		return err
	}
	return v.RegisterValidation("hhmm", strictLayout("15:04"))
}

// strictLayout 长度必须与 layout 一致，拒绝 2025-6-1、9:00 这类宽松写法
func strictLayout(layout string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if len(s) != len(layout) {
			return false
		}
		_, err := time.Parse(layout, s)
		return err == nil
	}
}
