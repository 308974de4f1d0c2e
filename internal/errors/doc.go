// Package errors provides coded diagnostics for the duplex command.
//
// Errors raised while loading configuration or starting the server carry a
// stable code (e.g. "D101"), a short message, an optional explanation and a
// hint. When the error points into a file, the offending line is printed
// with a column marker.
//
// # Usage
//
//	err := errors.New("D101").
//	    WithSource("duplex.json", data, syntaxErr.Offset).
//	    WithSuggestion("Check for a trailing comma")
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR D101: Invalid configuration file
//	//
//	//   duplex.json:3:1
//	//
//	//        1 │ {
//	//        2 │   "address": ":8080",
//	//   →    3 │ }
//	//           │ ^
//	//
//	//   Hint: Check for a trailing comma
package errors
