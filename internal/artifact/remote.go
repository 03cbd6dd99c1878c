package artifact

import (
	"dmvault/pkg/ftp"
)

type ftpRemoteStore struct {
	store *ftp.Store
}

// FTPRemoteStore adapts an FTP store to the service's RemoteStore port.
func FTPRemoteStore(store *ftp.Store) RemoteStore {
	return ftpRemoteStore{store: store}
}

func (f ftpRemoteStore) Begin() RemoteSession {
	return f.store.Begin()
}
