package tui

import "github.com/khirayama/reader-sub001/internal/notify"

type tagsLoadedMsg struct {
	err error
}

// viewLoadedMsg reports a completed initial load or refresh.
type viewLoadedMsg struct {
	viewID string
	err    error
}

// moreLoadedMsg reports a completed continuation (next page) load.
type moreLoadedMsg struct {
	viewID string
	err    error
}

type mutationDoneMsg struct {
	articleID string
	err       error
}

type refreshAllDoneMsg struct {
	err error
}

type busEventMsg notify.Event

type toastTickMsg struct{}

type openURLErrMsg struct {
	err error
}
