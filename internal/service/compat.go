package service

import (
	"strings"

	"github.com/huntparty/huntparty-backend/internal/models"
)

// NameResolver 블랙리스트의 이름 항목을 id로 변환한다 (유저 디렉토리 제공).
// 해석 실패는 "해당 없음"으로 취급한다.
type NameResolver func(name string) (string, bool)

// Compatible 두 참가자가 짝이 될 수 있는지 판정하는 순수 함수.
// 블랙리스트는 한쪽만 차단해도 제외되고, 버프 요구는 양방향 모두
// 만족해야 한다. 절대 오류를 내지 않는다 - 비어 있는 스펙은 제약 없음.
func Compatible(a, b *models.Entrant, resolve NameResolver) bool {
	if a == nil || b == nil || a.ID == b.ID {
		return false
	}
	if blocks(a, b, resolve) || blocks(b, a, resolve) {
		return false
	}
	return demandSatisfied(&a.Demand, &b.Supply) && demandSatisfied(&b.Demand, &a.Supply)
}

// blocks a의 블랙리스트가 b를 가리키는지 확인. 항목은 id이거나
// 이름(대소문자 무시)일 수 있다.
func blocks(a, b *models.Entrant, resolve NameResolver) bool {
	for _, entry := range a.Blocked {
		if entry == "" {
			continue
		}
		if entry == b.ID || strings.EqualFold(entry, b.Name) {
			return true
		}
		if resolve != nil {
			if id, ok := resolve(entry); ok && id == b.ID {
				return true
			}
		}
	}
	return false
}

// demandSatisfied 요구 범위가 있는 필드마다 상대 공급 값이 [min,max] 안에
// 있어야 한다. 요구 필드에 공급이 아예 없으면 실패.
func demandSatisfied(demand *models.BuffDemand, supply *models.BuffSupply) bool {
	if !fieldSatisfied(demand.HyperBody, supply.HyperBody) {
		return false
	}
	if !fieldSatisfied(demand.Haste, supply.Haste) {
		return false
	}
	if !fieldSatisfied(demand.Bless, supply.Bless) {
		return false
	}
	return true
}

func fieldSatisfied(r *models.BuffRange, supplied *int) bool {
	if r == nil {
		return true
	}
	if supplied == nil {
		return false
	}
	return r.Contains(*supplied)
}
