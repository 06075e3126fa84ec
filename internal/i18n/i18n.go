// Package i18n localizes the messages users see: preview notes, execution
// summaries and failure explanations. English and Persian are bundled.
package i18n

import (
	"context"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys. The English text doubles as the key.
const (
	MsgNoMatch        = "No product matches the request."
	MsgUnknownTask    = "This request cannot be previewed."
	MsgExecuted       = "%s finished: %d record(s) affected."
	MsgSkipped        = "%d previewed record(s) changed or were removed and were skipped."
	MsgNotConfigured  = "The language model is not configured."
	MsgUpstream       = "The language model could not be reached. Please try again."
	MsgEmptyResponse  = "The language model returned no answer. Please try again."
	MsgMalformed      = "The language model's answer could not be read. Please rephrase."
	MsgInvalidTask    = "The request could not be turned into a valid task."
	MsgUnsupported    = "Only product requests are supported."
	MsgExecution      = "The change could not be applied."
	MsgExpired        = "This draft expired before it was confirmed."
	MsgInternal       = "Something went wrong."
	MsgDraftNotFound  = "Draft not found."
	MsgNotConfirmable = "This draft cannot be confirmed in its current state."
	MsgRateLimited    = "Too many requests. Please wait a moment."
	MsgInvalidPrompt  = "The prompt is empty or too long."
	MsgInvalidBody    = "The request body is invalid."
	MsgMissingUser    = "Not logged in."
)

var persian = map[string]string{
	MsgNoMatch:        "هیچ محصولی با درخواست مطابقت ندارد.",
	MsgUnknownTask:    "پیش‌نمایش این درخواست ممکن نیست.",
	MsgExecuted:       "%s انجام شد: %d رکورد تغییر کرد.",
	MsgSkipped:        "%d رکورد پیش‌نمایش‌شده تغییر کرده یا حذف شده بود و نادیده گرفته شد.",
	MsgNotConfigured:  "مدل زبانی پیکربندی نشده است.",
	MsgUpstream:       "دسترسی به مدل زبانی ممکن نشد. دوباره تلاش کنید.",
	MsgEmptyResponse:  "مدل زبانی پاسخی نداد. دوباره تلاش کنید.",
	MsgMalformed:      "پاسخ مدل زبانی قابل خواندن نبود. درخواست را به شکل دیگری بنویسید.",
	MsgInvalidTask:    "درخواست به یک دستور معتبر تبدیل نشد.",
	MsgUnsupported:    "فقط درخواست‌های مربوط به محصول پشتیبانی می‌شوند.",
	MsgExecution:      "اعمال تغییر ممکن نشد.",
	MsgExpired:        "این پیش‌نویس پیش از تأیید منقضی شد.",
	MsgInternal:       "خطایی رخ داد.",
	MsgDraftNotFound:  "پیش‌نویس پیدا نشد.",
	MsgNotConfirmable: "این پیش‌نویس در وضعیت فعلی قابل تأیید نیست.",
	MsgRateLimited:    "تعداد درخواست‌ها زیاد است. کمی صبر کنید.",
	MsgInvalidPrompt:  "متن درخواست خالی یا بیش از حد طولانی است.",
	MsgInvalidBody:    "بدنه درخواست نامعتبر است.",
	MsgMissingUser:    "وارد نشده‌اید.",
}

// Supported lists the bundled languages, default first.
var Supported = []language.Tag{language.English, language.Persian}

var (
	cat     = buildCatalog()
	matcher = language.NewMatcher(Supported)
)

func buildCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, fa := range persian {
		if err := b.SetString(language.English, key, key); err != nil {
			panic(err)
		}
		if err := b.SetString(language.Persian, key, fa); err != nil {
			panic(err)
		}
	}
	return b
}

// Match picks the best bundled language for an Accept-Language header.
func Match(acceptLanguage string) language.Tag {
	_, index := language.MatchStrings(matcher, acceptLanguage)
	return Supported[index]
}

// NewPrinter returns a printer for tag backed by the bundled catalog.
func NewPrinter(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag, message.Catalog(cat))
}

type ctxKey struct{}

// WithLanguage stores tag in ctx.
func WithLanguage(ctx context.Context, tag language.Tag) context.Context {
	return context.WithValue(ctx, ctxKey{}, tag)
}

// LanguageFrom returns the language stored in ctx, English by default.
func LanguageFrom(ctx context.Context) language.Tag {
	if tag, ok := ctx.Value(ctxKey{}).(language.Tag); ok {
		return tag
	}
	return language.English
}

// Sprintf localizes key for the language in ctx.
func Sprintf(ctx context.Context, key string, args ...any) string {
	return NewPrinter(LanguageFrom(ctx)).Sprintf(key, args...)
}

// ActionLabel renders an action name for the start of a sentence.
func ActionLabel(ctx context.Context, action string) string {
	return cases.Title(LanguageFrom(ctx)).String(action)
}
