// Package cli implements the interactive crypto-chat terminal client.
//
// After login the client keeps a realtime event stream open and folds every
// event into the local conversation cache, so "chats" always shows the
// current list without asking the server again.
//
// Commands
//
//	Not logged in:
//	  - help              show available commands
//	  - register          create an account
//	  - login             authenticate
//	  - exit | quit       leave the program
//
//	Logged in:
//	  - chats             list conversations, newest first
//	  - search <q>        find users by handle
//	  - start <handle> <text>
//	                      start a conversation with its first message
//	  - open <chatId>     show a conversation and make it current
//	  - send <text>       send a message to the current conversation
//	  - logout            close the stream and forget the session
//	  - exit | quit       leave the program
package cli
