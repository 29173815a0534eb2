/*

Process of loop vectorization

Intermediate Representation (ir) ->
	check preconditions (vect.VLoop) ->
	mark reductions ->
	analyze memory slices ->
	construct body ->
	infer element types ->
	build dependence graph ->
Validated analysis bundle (vect.VLoopAnalyzer) ->
	alignment solving per memory reference ->
Vector Code Generation

*/
package compiler
