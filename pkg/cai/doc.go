// Package cai is an unofficial client for Character.AI.
//
// Client groups the REST endpoints (User, Post, Character, the legacy Chat
// and the chat2 REST calls on the neo host). Conn speaks the chat2 WebSocket
// protocol: it sends typed commands and waits for the frame that answers them,
// skipping echoes of human turns and partial candidates.
//
//	client := cai.NewClient(cai.Config{Token: os.Getenv("CAI_TOKEN")})
//	err := client.Connect(ctx, func(conn *cai.Conn) error {
//		chatID := cai.NewChatID()
//		if _, _, err := conn.NewChat(ctx, charID, chatID, userID, true); err != nil {
//			return err
//		}
//		reply, err := conn.SendMessage(ctx, charID, chatID, "hello",
//			cai.Author{AuthorID: userID, IsHuman: true, Name: "me"}, nil)
//		if err != nil {
//			return err
//		}
//		fmt.Println(reply.Text())
//		return nil
//	})
//
// Every wait on the socket is bounded by the context deadline, or by
// Config.TurnTimeout when the context has none. A Conn runs one exchange at a
// time.
package cai
