package mgo

import (
	"crypto/md5"
	"encoding/hex"

	"github.com/xdg-go/scram"

	"github.com/coreward/mgo/bson"
)

// runCommandOnSlot sends cmd against db's $cmd pseudo-collection directly
// over an already-acquired slot, bypassing the full command facade. This is
// the primitive both authentication and isMaster negotiation need before a
// Session exists to hang a Database/Collection off of.
func runCommandOnSlot(slot *poolSlot, db string, cmd bson.D) (bson.M, error) {
	reqID := nextRequestID()
	msg, err := buildOpQuery(reqID, db+".$cmd", 0, 0, -1, cmd, nil)
	if err != nil {
		return nil, err
	}
	slot.writer <- msg
	resp := <-slot.reader
	if resp.err != nil {
		return nil, resp.err
	}
	if resp.reply == nil || len(resp.reply.Documents) == 0 {
		return nil, &ProtocolError{Msg: "empty command reply"}
	}
	return resp.reply.Documents[0], nil
}

func replyOK(doc bson.M) bool {
	switch v := doc["ok"].(type) {
	case float64:
		return v == 1
	case int32:
		return v == 1
	case int64:
		return v == 1
	case int:
		return v == 1
	}
	return false
}

func replyErrMsg(doc bson.M) string {
	if s, ok := doc["errmsg"].(string); ok {
		return s
	}
	if s, ok := doc["$err"].(string); ok {
		return s
	}
	return "authentication failed"
}

// negotiateSlot runs isMaster once per connection to pick a wire compressor
// (per compress.go's OP_COMPRESSED negotiation) and, when the pool requires
// credentials, to choose between SCRAM-SHA-1 and legacy MONGODB-CR before
// handing the slot to its first caller.
func negotiateSlot(slot *poolSlot, cred *Credential) error {
	db := "admin"
	if cred != nil && cred.Source != "" {
		db = cred.Source
	}

	isMaster, err := runCommandOnSlot(slot, db, bson.D{
		{Name: "isMaster", Value: 1},
		{Name: "compression", Value: []string{"snappy", "zlib"}},
	})
	if err != nil {
		return err
	}

	if offered, ok := isMaster["compression"].([]interface{}); ok {
		names := make([]string, 0, len(offered))
		for _, o := range offered {
			if s, ok := o.(string); ok {
				names = append(names, s)
			}
		}
		slot.sock.compressor = negotiateCompressor(names)
	}

	if cred == nil {
		return nil
	}

	if mechs, ok := isMaster["saslSupportedMechs"]; ok && mechs != nil {
		return scramAuthenticate(slot, db, cred)
	}
	if maxWire, ok := isMaster["maxWireVersion"].(int32); ok && maxWire >= 3 {
		return scramAuthenticate(slot, db, cred)
	}
	return crAuthenticate(slot, db, cred)
}

func payloadBytes(v interface{}) []byte {
	switch p := v.(type) {
	case []byte:
		return p
	case bson.Binary:
		return p.Data
	case string:
		return []byte(p)
	default:
		return nil
	}
}

// scramAuthenticate drives the SCRAM-SHA-1 conversation over saslStart and
// saslContinue commands. The cryptographic primitives (HMAC, SHA-1,
// salted-password derivation) are supplied by xdg-go/scram as an external
// pure-function collaborator. MongoDB's flavor of SCRAM-SHA-1 salts the hex
// MD5 digest of "user:mongo:pass", not the raw password, so the digest is
// fed in through NewClientUnprepped to skip xdg-go's own SASLprep pass
// (which would otherwise mangle the hex digest as if it were a raw
// passphrase).
func scramAuthenticate(slot *poolSlot, db string, cred *Credential) error {
	passwordDigest := md5Hex(cred.Username + ":mongo:" + cred.Password)
	client, err := scram.SHA1.NewClientUnprepped(cred.Username, passwordDigest, "")
	if err != nil {
		return &AuthError{Msg: "building SCRAM client: " + err.Error()}
	}
	conv := client.NewConversation()

	clientFirst, err := conv.Step("")
	if err != nil {
		return &AuthError{Msg: "SCRAM client-first: " + err.Error()}
	}

	startReply, err := runCommandOnSlot(slot, db, bson.D{
		{Name: "saslStart", Value: 1},
		{Name: "mechanism", Value: "SCRAM-SHA-1"},
		{Name: "payload", Value: []byte(clientFirst)},
		{Name: "autoAuthorize", Value: 1},
		{Name: "options", Value: bson.M{"skipEmptyExchange": true}},
	})
	if err != nil {
		return err
	}
	if _, hasCode := startReply["code"]; hasCode || !replyOK(startReply) {
		return &AuthError{Msg: "saslStart rejected: " + replyErrMsg(startReply)}
	}

	conversationID := startReply["conversationId"]
	serverFirst := string(payloadBytes(startReply["payload"]))

	clientFinal, err := conv.Step(serverFirst)
	if err != nil {
		return &AuthError{Msg: "SCRAM client-final: " + err.Error()}
	}

	continueReply, err := runCommandOnSlot(slot, db, bson.D{
		{Name: "saslContinue", Value: 1},
		{Name: "conversationId", Value: conversationID},
		{Name: "payload", Value: []byte(clientFinal)},
	})
	if err != nil {
		return err
	}
	if !replyOK(continueReply) {
		return &AuthError{Msg: "saslContinue rejected: " + replyErrMsg(continueReply)}
	}

	serverFinal := string(payloadBytes(continueReply["payload"]))
	if _, err := conv.Step(serverFinal); err != nil {
		return &ProtocolError{Msg: "SCRAM server signature mismatch: " + err.Error()}
	}

	done, _ := continueReply["done"].(bool)
	if !done {
		finalReply, err := runCommandOnSlot(slot, db, bson.D{
			{Name: "saslContinue", Value: 1},
			{Name: "conversationId", Value: conversationID},
			{Name: "payload", Value: []byte{}},
		})
		if err != nil {
			return err
		}
		if d, _ := finalReply["done"].(bool); !d {
			return &AuthError{Msg: "SCRAM conversation did not complete"}
		}
	}

	return nil
}

// crAuthenticate performs the legacy MONGODB-CR getnonce/authenticate
// exchange, for servers predating SCRAM support.
func crAuthenticate(slot *poolSlot, db string, cred *Credential) error {
	nonceReply, err := runCommandOnSlot(slot, db, bson.D{{Name: "getnonce", Value: 1}})
	if err != nil {
		return err
	}
	nonce, _ := nonceReply["nonce"].(string)
	if nonce == "" {
		return &AuthError{Msg: "getnonce returned no nonce"}
	}

	passwordDigest := md5Hex(cred.Username + ":mongo:" + cred.Password)
	key := md5Hex(nonce + cred.Username + passwordDigest)

	authReply, err := runCommandOnSlot(slot, db, bson.D{
		{Name: "authenticate", Value: 1},
		{Name: "nonce", Value: nonce},
		{Name: "user", Value: cred.Username},
		{Name: "key", Value: key},
	})
	if err != nil {
		return err
	}
	if !replyOK(authReply) {
		return &AuthError{Msg: "MONGODB-CR authentication rejected: " + replyErrMsg(authReply)}
	}
	return nil
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
