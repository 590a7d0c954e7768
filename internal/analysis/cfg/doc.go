// # Description
//
// Package cfg builds statement level Control Flow Graphs (CFG) for Move
// functions.
//
// ## Control Flow Graph (CFG)
//
// A CFG is a representation, using graph notation, of all paths that might be traversed
// through a function during its execution. In this package:
//
//   - Each node in the graph is a single statement. Branching statements
//     (if, while, for, loop) are nodes of their own that evaluate the
//     condition and fan out to their bodies.
//   - The directed edges represent jumps in the control flow.
//   - Two sentinel nodes, Entry and Exit, frame the function. `return` and
//     falling off the end of the body flow to Exit. `abort` terminates the
//     path without reaching Exit, since an aborted transaction has no
//     observable effect.
//   - A trailing block value (`if (c) { a } else { b }` at the end of a
//     block) is expanded into branches like the statement form.
//
// ## Package Functionality
//
//  1. CFG Construction: `FromFunc` builds the graph of a function body.
//  2. Traversal: `Blocks`, `Preds` and `Succs` expose the graph for
//     worklist dataflow analyses, `Sort` orders nodes by source position.
//  3. Debugging: `PrintDot` renders the graph in Graphviz DOT format.
package cfg
