package services

import (
	"net/url"
	"strings"
)

const (
	CourierCJ      = "cj"
	CourierHanjin  = "hanjin"
	CourierLotte   = "lotte"
	CourierPost    = "epost"
	CourierLogen   = "logen"
	CourierCU      = "cupost"
	CourierGSPostbox = "gspostbox"
)

// NormalizeCourier returns a canonical courier key for known Korean
// carriers. Uploads spell carrier names inconsistently, so matching strips
// spaces and separators first.
func NormalizeCourier(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	replacer := strings.NewReplacer(" ", "", "-", "", "_", "", "(주)", "")
	normalized = replacer.Replace(normalized)

	switch normalized {
	case "cj", "cj대한통운", "대한통운", "cjgls", "cjlogistics":
		return CourierCJ
	case "한진", "한진택배", "hanjin":
		return CourierHanjin
	case "롯데", "롯데택배", "lotte", "롯데글로벌로지스":
		return CourierLotte
	case "우체국", "우체국택배", "epost", "koreapost":
		return CourierPost
	case "로젠", "로젠택배", "logen":
		return CourierLogen
	case "cu", "cu편의점택배", "cupost":
		return CourierCU
	case "gs", "gs25", "gspostbox", "gs편의점택배":
		return CourierGSPostbox
	default:
		return ""
	}
}

// CanonicalCourierName maps a courier key to its display name.
func CanonicalCourierName(courier string) string {
	switch NormalizeCourier(courier) {
	case CourierCJ:
		return "CJ대한통운"
	case CourierHanjin:
		return "한진택배"
	case CourierLotte:
		return "롯데택배"
	case CourierPost:
		return "우체국택배"
	case CourierLogen:
		return "로젠택배"
	case CourierCU:
		return "CU편의점택배"
	case CourierGSPostbox:
		return "GS편의점택배"
	default:
		return ""
	}
}

// ResolveCourierName keeps unknown carriers untouched and canonicalizes
// known ones.
func ResolveCourierName(courier string) string {
	trimmed := strings.TrimSpace(courier)
	if trimmed == "" {
		return ""
	}
	if canonical := CanonicalCourierName(trimmed); canonical != "" {
		return canonical
	}
	return trimmed
}

// BuildTrackingURL returns a carrier tracking URL. Unknown carriers return
// empty and the delivery is stored without a link.
func BuildTrackingURL(courier, trackingNumber string) string {
	number := strings.TrimSpace(trackingNumber)
	if number == "" {
		return ""
	}

	escaped := url.QueryEscape(number)
	switch NormalizeCourier(courier) {
	case CourierCJ:
		return "https://trace.cjlogistics.com/next/tracking.html?wblNo=" + escaped
	case CourierHanjin:
		return "https://www.hanjin.com/kor/CMS/DeliveryMgr/WaybillResult.do?mCode=MN038&schLang=KR&wblnumText2=" + escaped
	case CourierLotte:
		return "https://www.lotteglogis.com/home/reservation/tracking/linkView?InvNo=" + escaped
	case CourierPost:
		return "https://service.epost.go.kr/trace.RetrieveDomRigiTraceList.comm?sid1=" + escaped
	case CourierLogen:
		return "https://www.ilogen.com/web/personal/trace/" + escaped
	default:
		return ""
	}
}
