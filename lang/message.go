package lang

import (
	"slices"
	"strconv"
	"strings"
)

// Diagnostic messages.
const (
	msgNoTemplate            = "no templates found in source"
	msgNoTemplateBody        = "no template body"
	msgMissingTemplateName   = "template name is missing"
	msgMissingParenthesis    = "parameter list is missing ')'"
	msgExtraTextAfterParams  = "unexpected text after parameter list"
	msgInvalidLine           = "invalid line outside of a template; expecting '# name', '[description](id)', or '>' comment"
	msgInvalidTemplateBody   = "invalid template body line; alternatives must start with '-'"
	msgFenceOutsideBlock     = "'```' is only allowed inside an alternative"
	msgNoEndingInMultiline   = "closing '```' is missing for multiline text"
	msgNoCloseBracket        = "closing '}' is missing for expression"
	msgMissingStrucEnd       = "structured body is missing closing ']'"
	msgInvalidStrucBody      = "invalid structured body line; expecting 'key = value' or '${expression}'"
	msgEmptyStrucContent     = "structured body has no content"
	msgContentAfterStrucEnd  = "unexpected content after structured body ']'"
	msgInvalidWhitespace     = "at most one whitespace character is allowed between a keyword and ':'"
	msgNotStartWithIf        = "condition does not start with 'IF:'"
	msgMultipleIf            = "condition can not have more than one 'IF:'"
	msgNotEndWithElse        = "condition does not end with 'ELSE:'"
	msgInvalidMiddleInIf     = "only 'ELSEIF:' is allowed between 'IF:' and 'ELSE:'"
	msgInvalidExpressionInIf = "'IF:' and 'ELSEIF:' require exactly one expression"
	msgExtraExpressionInElse = "'ELSE:' can not have an expression"
	msgMissingBodyInIf       = "condition branch is missing a template body"
	msgNotStartWithSwitch    = "switch does not start with 'SWITCH:'"
	msgMultipleSwitch        = "switch can not have more than one 'SWITCH:'"
	msgInvalidMiddleInSwitch = "only 'CASE:' is allowed between 'SWITCH:' and 'DEFAULT:'"
	msgDefaultNotLast        = "'DEFAULT:' must be the last branch of a switch"
	msgNotEndWithDefault     = "switch does not end with 'DEFAULT:'"
	msgMissingCase           = "switch requires at least one 'CASE:'"
	msgInvalidExpressionCase = "'SWITCH:' and 'CASE:' require exactly one expression"
	msgExtraExpressionInDflt = "'DEFAULT:' can not have an expression"
	msgSwitchWithBody        = "'SWITCH:' can not have a template body"
	msgMissingBodyInCase     = "switch branch is missing a template body"
)

func msgInvalidTemplateName(name string) string {
	return "invalid template name '" + name + "'; each segment must match [a-zA-Z_][0-9a-zA-Z_]*"
}

func msgInvalidParameter(param string) string {
	return "invalid parameter name '" + param + "'; expecting letters, digits, or '_'"
}

func msgDuplicatedTemplate(name string) string {
	return "template '" + name + "' is defined more than once"
}

func msgDuplicatedAcross(name, source string) string {
	return "template '" + name + "' is also defined in " + source
}

func msgInvalidStrucName(name string) string {
	return "invalid structure name '" + name + "'"
}

func msgTemplateNotExist(name string) string {
	return "template '" + name + "' does not exist"
}

func msgFunctionNotExist(name string) string {
	return "function or template '" + name + "' does not exist"
}

func msgArgumentMismatch(name string, expected, actual int) string {
	return "arguments mismatch for template '" + name + "'; expecting " +
		strconv.Itoa(expected) + " but got " + strconv.Itoa(actual)
}

func msgExpressionParse(exp, cause string) string {
	return "expression '" + exp + "' failed to parse: " + cause
}

func msgKeywordNotAllowed(keyword string, kind BodyKind) string {
	return "'" + keyword + ":' is not allowed in a " + kind.String() + " body"
}

// templateMessage prefixes msg with the template name.
func templateMessage(name, msg string) string {
	if name == "" {
		return msg
	}

	return "[" + name + "] " + msg
}

// loopChain formats a call chain for loop errors: "A => B => A".
func loopChain(names []string, next string) string {
	return strings.Join(append(slices.Clone(names), next), " => ")
}
