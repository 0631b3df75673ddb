package detect

import (
	"sort"
)

// 스코어링 상수들입니다. 상대적 크기가 중요하며, 통화 기호 보너스는
// 소스 종류 보너스들을 압도할 만큼 커야 합니다.
const (
	// attributeMemberBonus 교차 검증된 속성 멤버 1개당 보너스
	attributeMemberBonus = 2

	// scriptMemberBonus 교차 검증된 스크립트 멤버 1개당 보너스.
	// 스크립트의 가격 필드는 드물지만 더 의도적인 선언이므로 속성보다 가중치가 높습니다.
	scriptMemberBonus = 3

	// singleSourcePenalty 단일 소스 종류에서만 발견된 그룹에 대한 고정 감점
	singleSourcePenalty = 4

	// proximityWindow 상품명 근접 보너스가 적용되는 최대 거리
	proximityWindow = 8

	// proximityPenalty 근접 창을 벗어난 그룹에 대한 고정 감점
	proximityPenalty = 2

	// currencySymbolBonus 그룹 내에 통화 기호를 가진 멤버가 있을 때의 고정 보너스
	currencySymbolBonus = 15

	// maxSelectedPrices 최종적으로 유지되는 가격 후보 그룹의 최대 개수
	maxSelectedPrices = 10
)

// priceGroup 동일한 금액을 가진 후보들의 그룹입니다.
type priceGroup struct {
	amount  int64
	members []*PriceCandidate
	score   int
}

// selectBestPrices 후보들을 금액별로 그룹화하고 스코어링하여 순위가 매겨진
// 대표 후보 목록을 반환합니다. 첫 번째가 선택된 가격이며 나머지는 대안입니다.
//
// 절차:
//  1. 정확히 동일한 금액끼리 그룹화합니다. (형성 순서 유지)
//  2. 그룹별로 소스 종류 교차 검증, 상품명 근접도, 통화 기호 존재 여부를 스코어링합니다.
//  3. 점수 내림차순 정렬 후 상위 10개 그룹만 유지합니다.
//  4. DOM 위치가 없는 그룹(스크립트 전용)은 제거합니다. 이런 그룹은 추적 대상이
//     될 수 없고, 다른 그룹의 교차 검증 카운트를 통해서만 간접적으로 기여합니다.
//  5. 살아남은 그룹의 대표 멤버에 대해서만 위치 참조를 계산합니다. (지연 계산)
//
// 후보가 하나도 살아남지 못하면 빈 슬라이스를 반환하며, 호출자는 이를
// ErrorKindPriceNotFound로 처리합니다.
func (d *Detector) selectBestPrices(candidates []*PriceCandidate) []*PriceCandidate {
	// 1단계: 금액별 그룹화. 동일 금액은 정확히 하나의 그룹에만 속합니다.
	var groups []*priceGroup
	groupByAmount := make(map[int64]*priceGroup)
	for _, candidate := range candidates {
		group, exists := groupByAmount[candidate.Parsed.Amount]
		if !exists {
			group = &priceGroup{amount: candidate.Parsed.Amount}
			groupByAmount[candidate.Parsed.Amount] = group
			groups = append(groups, group)
		}
		group.members = append(group.members, candidate)
	}

	// 2단계: 그룹 스코어링 및 멤버를 위치 보유 우선으로 안정 정렬
	for _, group := range groups {
		group.score = scoreGroup(group)
		sort.SliceStable(group.members, func(i, j int) bool {
			return group.members[i].Locatable() && !group.members[j].Locatable()
		})
	}

	// 3단계: 점수 내림차순 안정 정렬 후 상위 N개 유지
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].score > groups[j].score
	})
	if len(groups) > maxSelectedPrices {
		groups = groups[:maxSelectedPrices]
	}

	// 4~5단계: 위치 없는 그룹 제거, 대표 멤버의 위치 참조 지연 계산
	var selected []*PriceCandidate
	for _, group := range groups {
		representative := group.members[0]
		if !representative.Locatable() {
			continue
		}
		representative.Location = representative.computeLocation()
		if representative.Location == nil {
			continue
		}
		selected = append(selected, representative)
	}

	return selected
}

// scoreGroup 그룹 하나의 점수를 계산합니다.
//
// 기본 점수는 멤버 수이며, 서로 다른 소스 종류 간의 교차 검증이 보너스를,
// 단일 소스 종류만의 신호가 감점을 만듭니다. 텍스트 멤버가 있으면 상품명과의
// 거리가 가까울수록 보너스가 커지고, 근접 창을 벗어나면 고정 감점됩니다.
func scoreGroup(group *priceGroup) int {
	var attributeCount, scriptCount, textCount int
	hasSymbol := false
	minDistance := NameDistanceUnknown

	for _, member := range group.members {
		switch member.Kind {
		case SourceAttribute:
			attributeCount++
		case SourceScriptEmbedded:
			scriptCount++
		case SourceVisibleText:
			textCount++
			if member.NameDistance != NameDistanceUnknown {
				if minDistance == NameDistanceUnknown || member.NameDistance < minDistance {
					minDistance = member.NameDistance
				}
			}
		}
		if member.HasCurrencySymbol() {
			hasSymbol = true
		}
	}

	total := len(group.members)
	score := total

	if attributeCount > 0 {
		if attributeCount < total {
			score += attributeMemberBonus * attributeCount
		} else {
			score -= singleSourcePenalty
		}
	}

	if scriptCount > 0 {
		if scriptCount < total {
			score += scriptMemberBonus * scriptCount
		} else {
			score -= singleSourcePenalty
		}
	}

	// 속성도 스크립트도 없는 텍스트 전용 그룹은 소스 간 교차 검증이 없습니다.
	if attributeCount == 0 && scriptCount == 0 {
		score -= singleSourcePenalty
	}

	if textCount > 0 {
		distance := minDistance
		if distance == NameDistanceUnknown {
			// 거리를 계산할 수 없는 경우 근접 창 경계 바로 바깥으로 취급합니다.
			distance = proximityWindow + 1
		}
		if distance <= proximityWindow {
			score += proximityWindow - distance
		} else {
			score -= proximityPenalty
		}
	} else {
		score -= singleSourcePenalty
	}

	if hasSymbol {
		score += currencySymbolBonus
	}

	return score
}

// computeLocation 후보의 문서 내 위치 참조를 계산합니다.
// 비용이 들기 때문에 스코어링에서 살아남은 대표 후보에 대해서만 호출됩니다.
func (c *PriceCandidate) computeLocation() *Location {
	element := candidateNode(c.node)
	if element == nil {
		return nil
	}

	selector := nodeSelectorPath(element)
	if selector == "" {
		return nil
	}

	return &Location{
		Selector:  selector,
		Attribute: c.attrName,
		JSONPath:  c.jsonPath,
	}
}
