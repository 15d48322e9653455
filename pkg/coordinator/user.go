package coordinator

import "github.com/wirecall/wirecall/pkg/com"

type User struct {
	*com.SocketClient
}

func NewUser(sock *com.SocketClient) *User { return &User{SocketClient: sock} }
