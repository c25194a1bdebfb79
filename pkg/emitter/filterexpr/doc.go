/*
Package filterexpr compiles declarative listener filters.

# Overview

Filters written in configuration files are compiled once into an *Expr and
evaluated against a listener's argument bag on every dispatch.

	ex, err := filterexpr.Compile("score >= 10 and player.tier == 'gold'")
	if err != nil {
	    return err
	}
	ex.Match(map[string]any{"score": 12, "player": map[string]any{"tier": "gold"}}) // true

# Syntax

	<or>      := <and> ('or' <and>)*
	<and>     := <unary> ('and' <unary>)*
	<unary>   := ('not' | '!') <unary> | <compare>
	<compare> := <operand> [<op> <operand>]
	<operand> := '(' <or> ')' | <literal> | <path>
	<op>      := '==' | '!=' | '<' | '>' | '<=' | '>=' | 'contains'

Literals are quoted strings ('a' or "a"), numbers (42, -1, 3.5), true, false,
and null (or nil). A path is an identifier, optionally dotted, that walks
nested string-keyed maps: player.tier reads vars["player"]["tier"]. A missing
path resolves to null.

# Comparison

== and != compare numerically when both sides are numbers and by their
formatted text otherwise. The ordering operators require two numbers (numeric
strings count) and are false otherwise. contains tests slice membership when
the left side is a slice and substring containment otherwise.

# Truthiness

A lone operand is evaluated for truthiness: null is false, bools are
themselves, strings are false when empty, numbers are false when zero, and
anything else is true.
*/
package filterexpr
