// Package classify provides rule-based support-topic classification.
package classify

import "strings"

// Category represents a support topic.
type Category string

const (
	CategoryAccount   Category = "account"
	CategoryPayment   Category = "payment"
	CategoryCourse    Category = "course"
	CategoryTechnical Category = "technical"
	CategorySupport   Category = "support"
	CategoryGeneral   Category = "general"
)

// Categories lists every category in rule-priority order. The order is part of
// the contract: a question matching several rules is tagged with the first
// matching category, and the category decides which bucket a query draws
// candidates from.
var Categories = []Category{
	CategoryAccount,
	CategoryPayment,
	CategoryCourse,
	CategoryTechnical,
	CategorySupport,
	CategoryGeneral,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// rule pairs a category with the substrings that select it. Thai text has no
// word boundaries, so matching is plain substring containment on the
// lowercased input, same for English.
type rule struct {
	category Category
	keywords []string
}

var rules = []rule{
	{CategoryAccount, []string{
		"รหัสผ่าน", "เข้าสู่ระบบ", "ล็อกอิน", "บัญชี", "สมัครสมาชิก", "โปรไฟล์",
		"password", "login", "log in", "sign in", "signin", "account", "otp",
	}},
	{CategoryPayment, []string{
		"ชำระเงิน", "จ่ายเงิน", "โอนเงิน", "ราคา", "ค่าใช้จ่าย", "บัตรเครดิต",
		"ใบเสร็จ", "คืนเงิน", "สลิป", "โปรโมชั่น",
		"payment", "pay", "price", "invoice", "refund", "credit card", "promptpay",
	}},
	{CategoryCourse, []string{
		"คอร์ส", "หลักสูตร", "บทเรียน", "เนื้อหา", "ประกาศนียบัตร", "ใบรับรอง",
		"แบบทดสอบ", "เรียน",
		"course", "lesson", "certificate", "curriculum", "enroll", "quiz",
	}},
	{CategoryTechnical, []string{
		"ขัดข้อง", "ใช้งานไม่ได้", "โหลดไม่ขึ้น", "ค้าง", "วิดีโอไม่เล่น", "ดูวิดีโอไม่ได้",
		"error", "bug", "crash", "not working", "broken",
	}},
	{CategorySupport, []string{
		"ติดต่อ", "สอบถาม", "เจ้าหน้าที่", "ช่วยเหลือ", "แอดมิน",
		"contact", "support", "help", "staff", "admin",
	}},
}

// Classify tags text with a support category. It is total and deterministic:
// rules are checked in the order account, payment, course, technical, support,
// and the first match wins. Text matching no rule is tagged general.
func Classify(text string) Category {
	lower := strings.ToLower(text)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.category
			}
		}
	}
	return CategoryGeneral
}
