package webhook

import "github.com/stretchr/testify/mock"

// MatchNewDelivery creates a custom matcher for CreateDelivery arguments in mocks
func MatchNewDelivery(matcher func(NewDelivery) bool) interface{} {
	return mock.MatchedBy(matcher)
}

// MatchUpdate creates a custom matcher for UpdateDelivery arguments in mocks
func MatchUpdate(matcher func(DeliveryUpdate) bool) interface{} {
	return mock.MatchedBy(matcher)
}
