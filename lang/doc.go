// Package lang implements LG (Language Generation), a line-oriented template
// language for producing varied text and structured objects.
//
// # Source format
//
// A source is a sequence of template definitions, imports, and comments:
//
//	> comment
//	> !# @strict = true
//	[shared greetings](common.lg)
//
//	# greeting(name)
//	- Hello ${name}!
//	- Hi ${name}, good to see you.
//
//	# weather
//	IF: ${temperature > 30}
//	  - It is hot.
//	ELSEIF: ${temperature < 5}
//	  - It is cold.
//	ELSE:
//	  - It is mild.
//
//	# card
//	[HeroCard
//	  title = ${greeting(user.name)}
//	  buttons = Yes | No
//	]
//
// A name line starts with '#'. The lines up to the next name line form the
// body, which is one of four kinds:
//
//   - Normal: alternatives starting with '-'; evaluation picks one at random.
//   - Conditional: IF, ELSEIF, and ELSE branches, each with a normal body.
//   - Switch: SWITCH, CASE, and DEFAULT branches, each with a normal body.
//   - Structured: a bracketed type name with "key = value" lines, producing
//     a map with an "lgType" entry.
//
// Text between "```" fences spans several lines. A backslash escapes the
// next character.
//
// # Expressions
//
// ${...} holds an expr-lang expression evaluated against the caller's scope.
// Templates are callable from expressions by name, with positional
// arguments: ${greeting("Ann")}. A template reference written [name] or
// [name(args)] is shorthand for such a call. A call without arguments
// inherits the caller's scope; a call with arguments sees the global scope
// plus its parameters. A trailing '!' on a name (greeting!()) skips results
// memoized earlier in the same evaluation.
//
// Besides the expr-lang builtins, expressions may call template, fromFile,
// isTemplate, ActivityAttachment, and expandText.
//
// # Checking and evaluation
//
// [Parse] builds a [Templates] value, resolves its imports through a
// [Resolver], and records every problem as a [Diagnostic]. Evaluation is
// refused while any Error diagnostic exists. [Templates.Evaluate] produces one
// value, [Templates.Expand] every value, and [Templates.Analyze] the variables
// and templates a template depends on.
package lang
