package cmd

// Exit code classification: config error, model load failure, and
// store open failure each need a distinct os.Exit code, so each is
// wrapped in its own sentinel type that exitCodeFor (root.go)
// type-switches on.

type configError struct{ err error }

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

type modelError struct{ err error }

func (e *modelError) Error() string { return e.err.Error() }
func (e *modelError) Unwrap() error { return e.err }

type storeError struct{ err error }

func (e *storeError) Error() string { return e.err.Error() }
func (e *storeError) Unwrap() error { return e.err }
