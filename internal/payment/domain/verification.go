package domain

import (
	"github.com/shopspring/decimal"
)

type FailureReason string

const (
	ReasonGatewayUnreachable   FailureReason = "gateway_unreachable"
	ReasonVerificationRejected FailureReason = "verification_rejected"
	ReasonMalformedResponse    FailureReason = "malformed_response"
)

// VerificationResult is either Verified or Failed.
type VerificationResult interface {
	verificationResult()
}

// Verified carries the gateway-confirmed amount in major units.
type Verified struct {
	Amount     decimal.Decimal
	DonorEmail string
	Metadata   Metadata
}

type Failed struct {
	Reason FailureReason
}

func (Verified) verificationResult() {}
func (Failed) verificationResult()   {}
