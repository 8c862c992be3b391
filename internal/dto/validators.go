package dto

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dmgrok/unconference/internal/grouping"
)

// 自定义校验标签
const (
	notBlankTag = "notblank"
	minTableTag = "min_table"
	joinCodeTag = "join_code"
)

var joinCodePattern = regexp.MustCompile(`^[A-Za-z0-9]{4,16}$`)

// RegisterValidators 在 validator 实例上注册自定义校验规则，错误字段名使用 json 标签
func RegisterValidators(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	for tag, fn := range map[string]validator.Func{
		notBlankTag: notBlankValidation,
		minTableTag: minTableValidation,
		joinCodeTag: joinCodeValidation,
	} {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}
	return nil
}

// ValidationMessage 将校验错误转换为可读提示
func ValidationMessage(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return "参数校验失败"
	}
	fe := errs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " 不能为空"
	case notBlankTag:
		return fe.Field() + " 不能为空白"
	case minTableTag:
		return "min_participants_per_table 必须在 3-15 之间"
	case joinCodeTag:
		return "加入码格式不正确"
	default:
		return "参数校验失败: " + fe.Field()
	}
}

func notBlankValidation(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	return strings.TrimSpace(fl.Field().String()) != ""
}

func minTableValidation(fl validator.FieldLevel) bool {
	switch fl.Field().Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := fl.Field().Int()
		return n >= grouping.MinParticipantsLowerBound && n <= grouping.MinParticipantsUpperBound
	}
	return false
}

func joinCodeValidation(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	return joinCodePattern.MatchString(fl.Field().String())
}
