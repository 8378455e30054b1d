package account

import (
	"fmt"

	"omni/go-backend/internal/identity"
	"omni/go-backend/internal/message"
)

// Account error codes live in the attribute's 9000 range.
const (
	CodeUnknownAccount         message.ErrorCode = 9001
	CodeUnknownRole            message.ErrorCode = 9002
	CodeUserNeedsRole          message.ErrorCode = 9003
	CodeDuplicateFeature       message.ErrorCode = 9004
	CodeUnknownFeature         message.ErrorCode = 9005
	CodeInvalidFeatureArgument message.ErrorCode = 9006
)

func init() {
	message.RegisterCodeName(CodeUnknownAccount, "unknown_account")
	message.RegisterCodeName(CodeUnknownRole, "unknown_role")
	message.RegisterCodeName(CodeUserNeedsRole, "user_needs_role")
	message.RegisterCodeName(CodeDuplicateFeature, "duplicate_feature")
	message.RegisterCodeName(CodeUnknownFeature, "unknown_feature")
	message.RegisterCodeName(CodeInvalidFeatureArgument, "invalid_feature_argument")
}

var (
	ErrUnknownAccount         = &message.Error{Code: CodeUnknownAccount}
	ErrUnknownRole            = &message.Error{Code: CodeUnknownRole}
	ErrUserNeedsRole          = &message.Error{Code: CodeUserNeedsRole}
	ErrDuplicateFeature       = &message.Error{Code: CodeDuplicateFeature}
	ErrUnknownFeature         = &message.Error{Code: CodeUnknownFeature}
	ErrInvalidFeatureArgument = &message.Error{Code: CodeInvalidFeatureArgument}
)

func unknownAccount(id identity.Identity) *message.Error {
	return message.NewError(CodeUnknownAccount, `Unknown account "{account}".`, "account", id.String())
}

func unknownRole(role Role) *message.Error {
	return message.NewError(CodeUnknownRole, `Unknown role "{role}".`, "role", string(role))
}

func userNeedsRole(role Role) *message.Error {
	return message.NewError(CodeUserNeedsRole, `Sender needs role "{role}" to perform this operation.`, "role", string(role))
}

func duplicateFeature(id FeatureID) *message.Error {
	return message.NewError(CodeDuplicateFeature, "Feature {id} is already enabled.", "id", fmt.Sprint(uint32(id)))
}

func unknownFeature(id FeatureID) *message.Error {
	return message.NewError(CodeUnknownFeature, "Feature {id} is not supported.", "id", fmt.Sprint(uint32(id)))
}

func invalidFeatureArgument(id FeatureID, reason string) *message.Error {
	return message.NewError(CodeInvalidFeatureArgument, "Invalid argument for feature {id}: {reason}.",
		"id", fmt.Sprint(uint32(id)), "reason", reason)
}

func invalidRoleHolder() *message.Error {
	return message.InvalidIdentity("roles cannot be held by the anonymous identity")
}

func anonymousCreator() *message.Error {
	return message.InvalidIdentity("accounts cannot be created by the anonymous identity")
}
