package engine

import (
	"fmt"

	"github.com/hearthguard/sentinel/model"
	pdp_model "github.com/hearthguard/sentinel/pdp/model"
)

type conditionFunc func(cond model.Condition, principal model.Principal, request *pdp_model.AccessRequest) (bool, error)

// conditionTable is the closed dispatch set for policy conditions. New kinds
// require an explicit entry here and in model.ConditionType.Known.
var conditionTable = map[model.ConditionType]conditionFunc{
	model.ConditionTimeRange:     evaluateTimeRange,
	model.ConditionLocation:      evaluateLocation,
	model.ConditionDevice:        evaluateDevice,
	model.ConditionResourceOwner: evaluateResourceOwner,
}

func evaluateTimeRange(cond model.Condition, _ model.Principal, request *pdp_model.AccessRequest) (bool, error) {
	if cond.StartHour < 0 || cond.StartHour > 23 || cond.EndHour < 0 || cond.EndHour > 23 {
		return false, fmt.Errorf("time_range bounds out of range: [%d, %d]", cond.StartHour, cond.EndHour)
	}
	hour := request.Context.HourOfDay()
	var within bool
	if cond.StartHour <= cond.EndHour {
		within = hour >= cond.StartHour && hour <= cond.EndHour
	} else {
		// window wraps past midnight
		within = hour >= cond.StartHour || hour <= cond.EndHour
	}
	switch cond.Operator {
	case model.OpBetween:
		return within, nil
	case model.OpOutside:
		return !within, nil
	default:
		return false, fmt.Errorf("unknown time_range operator %q", cond.Operator)
	}
}

func evaluateLocation(cond model.Condition, _ model.Principal, request *pdp_model.AccessRequest) (bool, error) {
	return evaluateTagList(cond, request.Context.Location, "location")
}

func evaluateDevice(cond model.Condition, _ model.Principal, request *pdp_model.AccessRequest) (bool, error) {
	return evaluateTagList(cond, request.Context.Device, "device")
}

func evaluateTagList(cond model.Condition, value, kind string) (bool, error) {
	if len(cond.Tags) == 0 {
		return false, fmt.Errorf("%s condition has no tags", kind)
	}
	found := false
	for _, tag := range cond.Tags {
		if tag == value {
			found = true
			break
		}
	}
	switch cond.Operator {
	case model.OpIn:
		return found, nil
	case model.OpNotIn:
		return !found, nil
	default:
		return false, fmt.Errorf("unknown %s operator %q", kind, cond.Operator)
	}
}

func evaluateResourceOwner(cond model.Condition, principal model.Principal, request *pdp_model.AccessRequest) (bool, error) {
	owner := request.Context.ResourceOwner
	match := owner != "" && owner == principal.ID
	switch cond.Operator {
	case model.OpEquals:
		return match, nil
	case model.OpNotEquals:
		return !match, nil
	default:
		return false, fmt.Errorf("unknown resource_owner operator %q", cond.Operator)
	}
}
