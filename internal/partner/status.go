package partner

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Result codes produced by this package rather than by a partner status.
const (
	CodeRoutingError       = "ROUTING_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeParseError         = "PARSE_ERROR"
	CodeExternalFault      = "EXTERNAL_FAULT"
	CodeExternalRejected   = "EXTERNAL_REJECTED"
)

// Domain codes mapped from partner statuses.
const (
	CodeContractCancelled    = "CONTRACT_CANCELLED"
	CodeContractSuspended    = "CONTRACT_SUSPENDED"
	CodeContractNotFound     = "CONTRACT_NOT_FOUND"
	CodePaymentLimitExceeded = "PAYMENT_LIMIT_EXCEEDED"
	CodeBeneficiaryMismatch  = "BENEFICIARY_MISMATCH"
	CodeDuplicatePayment     = "DUPLICATE_PAYMENT"
	CodeClaimNotCovered      = "CLAIM_NOT_COVERED"
	CodeQuotaInArrears       = "QUOTA_IN_ARREARS"
)

var statusCodes = map[int]string{
	1: CodeContractCancelled,
	2: CodeContractSuspended,
	3: CodeContractNotFound,
	4: CodePaymentLimitExceeded,
	5: CodeBeneficiaryMismatch,
	6: CodeDuplicatePayment,
	7: CodeClaimNotCovered,
	8: CodeQuotaInArrears,
}

var messages = map[string]string{
	CodeContractCancelled:    "Contrato cancelado",
	CodeContractSuspended:    "Contrato suspenso",
	CodeContractNotFound:     "Contrato não encontrado",
	CodePaymentLimitExceeded: "Limite de pagamento excedido",
	CodeBeneficiaryMismatch:  "Favorecido não confere com o cadastro",
	CodeDuplicatePayment:     "Pagamento em duplicidade",
	CodeClaimNotCovered:      "Sinistro sem cobertura contratual",
	CodeQuotaInArrears:       "Cota em atraso",
	CodeExternalRejected:     "Pagamento recusado pela validação externa",
	CodeRoutingError:         "Nenhum serviço de validação atende este produto",
	CodeServiceUnavailable:   "Serviço de validação indisponível no momento",
	CodeParseError:           "Resposta inválida do serviço de validação",
	CodeExternalFault:        "Falha no serviço de validação externa",
}

// MessageFor returns the Portuguese message of a result code.
func MessageFor(code string) string {
	if msg, ok := messages[code]; ok {
		return msg
	}
	return messages[CodeExternalRejected]
}

// MapStatus turns a raw partner status into a response. A status made only of zero
// digits is a success. Any other numeric status goes through the fixed code table, unknown
// ones becoming EXTERNAL_REJECTED. Non-numeric or empty statuses are PARSE_ERROR.
func MapStatus(kind Kind, raw, partnerMessage string, at time.Time) ValidationResponse {
	status := strings.TrimSpace(raw)
	resp := ValidationResponse{Partner: kind, Status: status, Timestamp: at}

	if status == "" || strings.IndexFunc(status, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
		resp.Code = CodeParseError
		resp.Message = MessageFor(CodeParseError)
		return resp
	}

	if strings.Trim(status, "0") == "" {
		resp.Success = true
		resp.Message = partnerMessage
		return resp
	}

	n, err := strconv.Atoi(status)
	code, ok := statusCodes[n]
	if err != nil || !ok {
		resp.Code = CodeExternalRejected
		resp.Message = fmt.Sprintf("%s (código %s)", MessageFor(CodeExternalRejected), status)
		return resp
	}
	resp.Code = code
	resp.Message = MessageFor(code)
	return resp
}

// mapResponse is MapStatus for a decoded reply. A reply that decoded but carries no usable
// status is returned as a PARSE_ERROR CallError, the same as a body that failed to decode.
func mapResponse(kind Kind, raw, partnerMessage string, at time.Time) (ValidationResponse, error) {
	resp := MapStatus(kind, raw, partnerMessage, at)
	if resp.Code == CodeParseError {
		return ValidationResponse{}, parseError(kind, fmt.Errorf("unusable status %q", resp.Status))
	}
	return resp, nil
}
